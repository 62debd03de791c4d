package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines catalog data operations.
type Repository interface {
	// CreateBrand assigns an ID, derives the slug from the name when empty and
	// stores the brand. Returns ErrDuplicateSlug when the slug is taken.
	CreateBrand(ctx context.Context, brand *Brand) error
	GetBrand(ctx context.Context, id string) (*Brand, error)
	GetBrandBySlug(ctx context.Context, slug string) (*Brand, error)
	// ListBrands returns all brands ordered by name.
	ListBrands(ctx context.Context) ([]*Brand, error)

	// CreateProduct stores a product for an existing brand.
	// Returns ErrBrandNotFound when the brand does not exist.
	CreateProduct(ctx context.Context, product *Product) error
	// UpdateProduct replaces the mutable fields of a product.
	UpdateProduct(ctx context.Context, product *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*Product, error)
	// ListProducts returns products matching filter ordered by name, then ID.
	ListProducts(ctx context.Context, filter Filter) ([]*Product, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu           sync.RWMutex
	brands       map[string]*Brand
	brandSlugs   map[string]string
	products     map[string]*Product
	productSlugs map[string]string
}

// NewInMemoryRepository creates a new in-memory catalog repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		brands:       make(map[string]*Brand),
		brandSlugs:   make(map[string]string),
		products:     make(map[string]*Product),
		productSlugs: make(map[string]string),
	}
}

// CreateBrand stores a new brand.
func (r *InMemoryRepository) CreateBrand(ctx context.Context, brand *Brand) error {
	if err := prepareBrand(brand); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.brandSlugs[brand.Slug]; taken {
		return ErrDuplicateSlug
	}

	now := time.Now().UTC()
	brand.ID = uuid.New().String()
	brand.CreatedAt = now
	brand.UpdatedAt = now

	brandCopy := *brand
	r.brands[brand.ID] = &brandCopy
	r.brandSlugs[brand.Slug] = brand.ID
	return nil
}

// GetBrand retrieves a brand by ID.
func (r *InMemoryRepository) GetBrand(ctx context.Context, id string) (*Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brand, ok := r.brands[id]
	if !ok {
		return nil, ErrBrandNotFound
	}
	brandCopy := *brand
	return &brandCopy, nil
}

// GetBrandBySlug retrieves a brand by slug.
func (r *InMemoryRepository) GetBrandBySlug(ctx context.Context, slug string) (*Brand, error) {
	r.mu.RLock()
	id, ok := r.brandSlugs[slug]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrBrandNotFound
	}
	return r.GetBrand(ctx, id)
}

// ListBrands returns all brands ordered by name.
func (r *InMemoryRepository) ListBrands(ctx context.Context) ([]*Brand, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Brand, 0, len(r.brands))
	for _, b := range r.brands {
		brandCopy := *b
		out = append(out, &brandCopy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateProduct stores a new product.
func (r *InMemoryRepository) CreateProduct(ctx context.Context, product *Product) error {
	if err := prepareProduct(product); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.brands[product.BrandID]; !ok {
		return ErrBrandNotFound
	}
	if _, taken := r.productSlugs[product.Slug]; taken {
		return ErrDuplicateSlug
	}

	now := time.Now().UTC()
	product.ID = uuid.New().String()
	product.CreatedAt = now
	product.UpdatedAt = now

	productCopy := *product
	r.products[product.ID] = &productCopy
	r.productSlugs[product.Slug] = product.ID
	return nil
}

// UpdateProduct replaces a product's mutable fields. The brand and slug are
// fixed at creation.
func (r *InMemoryRepository) UpdateProduct(ctx context.Context, product *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return ErrProductNotFound
	}

	existing.Name = product.Name
	existing.Flavor = product.Flavor
	existing.Description = product.Description
	existing.ImageKey = product.ImageKey
	existing.Caffeinated = product.Caffeinated
	existing.UpdatedAt = time.Now().UTC()

	*product = *existing
	return nil
}

// GetProduct retrieves a product by ID.
func (r *InMemoryRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	productCopy := *product
	return &productCopy, nil
}

// GetProductBySlug retrieves a product by slug.
func (r *InMemoryRepository) GetProductBySlug(ctx context.Context, slug string) (*Product, error) {
	r.mu.RLock()
	id, ok := r.productSlugs[slug]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrProductNotFound
	}
	return r.GetProduct(ctx, id)
}

// ListProducts returns products matching filter ordered by name, then ID.
func (r *InMemoryRepository) ListProducts(ctx context.Context, filter Filter) ([]*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Product, 0)
	for _, p := range r.products {
		if !filter.matches(p) {
			continue
		}
		productCopy := *p
		out = append(out, &productCopy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func prepareBrand(brand *Brand) error {
	if brand.Slug == "" {
		brand.Slug = Slugify(brand.Name)
	}
	if brand.Slug == "" {
		return ErrInvalidName
	}
	return nil
}

func prepareProduct(product *Product) error {
	if product.Slug == "" {
		product.Slug = Slugify(product.Name)
	}
	if product.Slug == "" {
		return ErrInvalidName
	}
	return nil
}
