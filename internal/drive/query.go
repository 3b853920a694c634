package drive

import (
	"context"
	"fmt"
)

// QueryBatch returns one page of headers matching q. Pass the returned
// CursorState back to continue; an empty cursor starts from the beginning.
func (p *Provider) QueryBatch(ctx context.Context, drive TargetDrive, q QueryParams, cursor string) (*QueryBatchResult, error) {
	return p.queryBatch(ctx, localRoute, drive, q, cursor)
}

func (p *Provider) queryBatch(ctx context.Context, r route, drive TargetDrive, q QueryParams, cursor string) (*QueryBatchResult, error) {
	if err := drive.Validate(); err != nil {
		return nil, err
	}
	v := r.values(drive)
	q.encode(v)
	if cursor != "" {
		v.Set(ParamCursorState, cursor)
	}

	resp, err := p.api.Get(ctx, r.batch, v, r.opts...)
	if err != nil {
		return nil, fmt.Errorf("query batch %s: %w", drive, err)
	}
	var res QueryBatchResult
	if err := resp.Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QueryBatchDecrypted is QueryBatch with every entry's content decrypted.
// A file that fails to decrypt is returned with Err set; it never fails the
// page.
func (p *Provider) QueryBatchDecrypted(ctx context.Context, drive TargetDrive, q QueryParams, cursor string) ([]DecryptedFile, string, error) {
	return p.queryBatchDecrypted(ctx, localRoute, drive, q, cursor)
}

func (p *Provider) queryBatchDecrypted(ctx context.Context, r route, drive TargetDrive, q QueryParams, cursor string) ([]DecryptedFile, string, error) {
	res, err := p.queryBatch(ctx, r, drive, q, cursor)
	if err != nil {
		return nil, "", err
	}

	out := make([]DecryptedFile, len(res.Results))
	for i := range res.Results {
		h := res.Results[i]
		content, err := p.decryptHeader(&h)
		if err != nil {
			p.logger.Warn(ctx, "file content decrypt failed", "fileId", h.FileID, "error", err)
		}
		out[i] = DecryptedFile{Header: h, Content: content, Err: err}
	}
	return out, res.CursorState, nil
}

// QueryAll walks the cursor chain until an empty page and calls fn for
// every header. fn returning an error stops the walk.
func (p *Provider) QueryAll(ctx context.Context, drive TargetDrive, q QueryParams, fn func(FileHeader) error) error {
	cursor := ""
	for {
		res, err := p.QueryBatch(ctx, drive, q, cursor)
		if err != nil {
			return err
		}
		if len(res.Results) == 0 {
			return nil
		}
		for _, h := range res.Results {
			if err := fn(h); err != nil {
				return err
			}
		}
		cursor = res.CursorState
	}
}
