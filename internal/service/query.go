package service

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"docflow/internal/model"
	"docflow/internal/repository"
)

// maxPageSize caps a single page when the caller asks for one.
const maxPageSize = 100

// List translates caller options into a repository filter. Unset sort means newest first;
// a zero limit returns every match.
func (s *documentService) List(ctx context.Context, opts ListOptions) (*DocumentListResult, error) {
	f, err := toFilter(opts)
	if err != nil {
		return nil, err
	}

	res, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, persistenceErr(err)
	}
	items := res.Items
	if items == nil {
		items = []model.Document{}
	}
	return &DocumentListResult{Items: items, Total: res.Total}, nil
}

func toFilter(opts ListOptions) (repository.DocumentFilter, error) {
	opts.Status = strings.ToLower(strings.TrimSpace(opts.Status))
	opts.Sort = strings.ToLower(strings.TrimSpace(opts.Sort))

	err := validation.ValidateStruct(&opts,
		validation.Field(&opts.Status, validation.By(func(v any) error {
			if st := model.Status(v.(string)); st != "" && !st.Valid() {
				return fmt.Errorf("unknown status %q", st)
			}
			return nil
		})),
		validation.Field(&opts.Sort, validation.By(func(v any) error {
			if so := repository.SortOrder(v.(string)); so != "" && !so.Valid() {
				return fmt.Errorf("unknown sort %q", so)
			}
			return nil
		})),
		validation.Field(&opts.Limit, validation.Min(0), validation.Max(maxPageSize)),
		validation.Field(&opts.Offset, validation.Min(0)),
	)
	if err != nil {
		return repository.DocumentFilter{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	sort := repository.SortOrder(opts.Sort)
	if sort == "" {
		sort = repository.SortUploadedDesc
	}
	return repository.DocumentFilter{
		OwnerID: opts.OwnerID,
		Status:  model.Status(opts.Status),
		Query:   strings.TrimSpace(opts.Query),
		Sort:    sort,
		Page:    repository.PageQuery{Limit: opts.Limit, Offset: opts.Offset},
	}, nil
}
