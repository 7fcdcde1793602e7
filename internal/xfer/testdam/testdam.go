// Package testdam mints real pre-signed URLs against test doubles of the
// blob stores the engine targets in production, so integration tests can
// exercise BlockUpload/BlockDownload against the exact URL shapes S3 and
// Azure Blob Storage hand back, without the production code ever importing
// either cloud SDK (spec §1's "cloud SDK clients used only to mint
// pre-signed URLs in tests" carve-out).
package testdam

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3PresignPUT mints a presigned PUT URL against an S3-compatible endpoint
// (typically an httptest.Server standing in for the real service), the way
// a blob-store-backed DAM would hand one back from its initiateUpload
// response.
func S3PresignPUT(ctx context.Context, endpoint, bucket, key string) (*url.URL, error) {
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider("test-access-key", "test-secret-key", ""),
		UsePathStyle: true,
	})
	presigner := s3.NewPresignClient(client)
	req, err := presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("testdam: presign s3 PUT: %w", err)
	}
	return url.Parse(req.URL)
}

// AzureBlockSAS mints a SAS URL for a block blob with write permission
// against an Azurite-shaped endpoint, standing in for the SAS URL a DAM
// backed by Azure Blob Storage would return from its own initiate handshake.
func AzureBlockSAS(accountName, accountKey, endpoint, container, blobName string, expiry time.Duration) (*url.URL, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("testdam: shared key credential: %w", err)
	}

	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		ExpiryTime:    time.Now().Add(expiry),
		Permissions:   (&sas.BlobPermissions{Read: true, Write: true, Create: true}).String(),
		ContainerName: container,
		BlobName:      blobName,
	}
	q, err := values.SignWithSharedKey(cred)
	if err != nil {
		return nil, fmt.Errorf("testdam: sign SAS: %w", err)
	}

	u, err := url.Parse(fmt.Sprintf("%s/%s/%s", endpoint, container, blobName))
	if err != nil {
		return nil, err
	}
	u.RawQuery = q.Encode()
	return u, nil
}
