package services

import (
	"context"
	"strings"

	domainagg "github.com/yungbote/freightquote-backend/internal/domain/aggregates"
	"github.com/yungbote/freightquote-backend/internal/platform/gcp"
	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// DocumentVerifier checks a CT-e document reference before it is recorded.
type DocumentVerifier interface {
	Verify(ctx context.Context, ref string) error
}

type documentVerifier struct {
	log   *logger.Logger
	store gcp.DocumentStore
}

// NewDocumentVerifier checks gs:// refs against store. Every other ref, and
// every ref when store is nil, is accepted as opaque.
func NewDocumentVerifier(log *logger.Logger, store gcp.DocumentStore) DocumentVerifier {
	return &documentVerifier{log: log.With("service", "DocumentVerifier"), store: store}
}

func (v *documentVerifier) Verify(ctx context.Context, ref string) error {
	const op = "DocumentVerifier.Verify"
	if v.store == nil || !strings.HasPrefix(strings.TrimSpace(ref), "gs://") {
		return nil
	}
	bucket, object, ok := gcp.ParseGSURI(ref)
	if !ok {
		return domainagg.NewError(domainagg.CodeValidation, op, "malformed gs:// document_ref", nil)
	}
	exists, err := v.store.Exists(ctx, bucket, object)
	if err != nil {
		v.log.Warn("Document lookup failed", "document_ref", ref, "error", err)
		return domainagg.NewError(domainagg.CodeRetryable, op, "document store unavailable", err)
	}
	if !exists {
		return domainagg.NewError(domainagg.CodeValidation, op, "document_ref does not exist", nil)
	}
	return nil
}
