package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/asaadkhaja99/rabbit-hole/internal/domain"
	"github.com/asaadkhaja99/rabbit-hole/internal/provider"
)

func (c *Client) CreateStore(ctx context.Context, displayName string) (string, error) {
	store, err := c.client.FileSearchStores.Create(ctx, &genai.CreateFileSearchStoreConfig{
		DisplayName: displayName,
	})
	if err != nil {
		return "", domain.NewProviderError("create file search store", err)
	}
	return store.Name, nil
}

func (c *Client) Upload(ctx context.Context, storeName, path, displayName string) (*provider.IndexOperation, error) {
	op, err := c.client.FileSearchStores.UploadToFileSearchStoreFromPath(ctx, path, storeName,
		&genai.UploadToFileSearchStoreConfig{
			DisplayName: displayName,
			MIMEType:    "application/pdf",
		},
	)
	if err != nil {
		return nil, domain.NewProviderError("upload to file search store", err)
	}
	return fromUploadOperation(op), nil
}

func (c *Client) Refresh(ctx context.Context, op *provider.IndexOperation) (*provider.IndexOperation, error) {
	native, ok := op.Handle.(*genai.UploadToFileSearchStoreOperation)
	if !ok {
		return nil, fmt.Errorf("gemini: unexpected operation handle %T", op.Handle)
	}

	refreshed, err := c.client.Operations.GetUploadToFileSearchStoreOperation(ctx, native, nil)
	if err != nil {
		return nil, domain.NewProviderError("get upload operation", err)
	}
	return fromUploadOperation(refreshed), nil
}

func fromUploadOperation(op *genai.UploadToFileSearchStoreOperation) *provider.IndexOperation {
	out := &provider.IndexOperation{
		Name:   op.Name,
		Done:   op.Done,
		Handle: op,
	}
	if op.Response != nil {
		out.DocumentName = op.Response.DocumentName
	}
	if len(op.Error) > 0 {
		out.Err = fmt.Sprint(op.Error)
	}
	return out
}
