package service

import (
	"context"
	"errors"

	"github.com/iliyamo/flash-sale/internal/model"
	"github.com/iliyamo/flash-sale/internal/repository"
)

// ProductService serves the catalog with prices for the current sale state.
type ProductService struct {
	products *repository.ProductRepo
	sale     SaleState
}

func NewProductService(products *repository.ProductRepo, sale SaleState) *ProductService {
	return &ProductService{products: products, sale: sale}
}

func (s *ProductService) List(ctx context.Context) ([]model.ProductView, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	active := s.sale.IsActive(ctx)
	views := make([]model.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, p.View(active))
	}
	return views, nil
}

func (s *ProductService) Get(ctx context.Context, id uint64) (model.ProductView, error) {
	p, err := s.products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrProductNotFound) {
		return model.ProductView{}, ErrResourceNotFound
	}
	if err != nil {
		return model.ProductView{}, err
	}
	return p.View(s.sale.IsActive(ctx)), nil
}

// SearchResult is one page of catalog search.
type SearchResult struct {
	Items    []model.ProductView `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

func (s *ProductService) Search(ctx context.Context, q repository.ProductSearchQuery) (SearchResult, error) {
	products, total, err := s.products.Search(ctx, q)
	if err != nil {
		return SearchResult{}, err
	}
	active := s.sale.IsActive(ctx)
	items := make([]model.ProductView, 0, len(products))
	for _, p := range products {
		items = append(items, p.View(active))
	}
	return SearchResult{Items: items, Total: total, Page: q.Page, PageSize: q.PageSize}, nil
}
