package service

import (
	"github.com/storefront-next/internal/models"
	"github.com/storefront-next/internal/repository"

	"gorm.io/gorm"
)

// CartLineDetail 购物车行定价详情（用于响应）
type CartLineDetail struct {
	ID            uint         `json:"id"`
	ProductID     uint         `json:"productId"`
	VariantID     uint         `json:"variantId"`
	Quantity      int          `json:"quantity"`
	ProductName   string       `json:"productName"`
	ImageURL      string       `json:"imageUrl"`
	Brand         string       `json:"brand"`
	Price         models.Money `json:"price"`
	StockQuantity int          `json:"stockQuantity"`
	VariantType   string       `json:"variantType"`
	VariantValue  string       `json:"variantValue"`
	LineTotal     models.Money `json:"lineTotal"`
}

// CartView 购物车视图
type CartView struct {
	Items    []CartLineDetail `json:"items"`
	Subtotal models.Money     `json:"subtotal"`
}

// AddCartItemInput 加购输入
type AddCartItemInput struct {
	UserID    uint
	ProductID uint
	VariantID uint
	Quantity  int
}

// CartService 购物车服务
type CartService struct {
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
}

// NewCartService 创建购物车服务
func NewCartService(cartRepo repository.CartRepository, variantRepo repository.VariantRepository) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		variantRepo: variantRepo,
	}
}

// AddOrIncrement 加购；同一 (用户, 商品, 规格) 已存在时累加数量，返回当前购物车原始行
func (s *CartService) AddOrIncrement(input AddCartItemInput) ([]models.CartItem, error) {
	if input.UserID == 0 || input.ProductID == 0 || input.VariantID == 0 {
		return nil, ErrMissingCartIdentifiers
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.variantRepo.GetByID(input.VariantID)
	if err != nil {
		return nil, err
	}
	if variant == nil || variant.ProductID != input.ProductID {
		return nil, ErrVariantNotFound
	}

	err = s.addOrIncrementTx(input)
	if repository.IsUniqueViolation(err) {
		// 并发插入同一行时，另一方已创建，重试走累加分支
		err = s.addOrIncrementTx(input)
	}
	if err != nil {
		return nil, err
	}
	return s.ListLines(input.UserID)
}

func (s *CartService) addOrIncrementTx(input AddCartItemInput) error {
	return s.cartRepo.Transaction(func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		existing, err := cartRepo.FindLineForUpdate(input.UserID, input.ProductID, input.VariantID)
		if err != nil {
			return err
		}
		if existing != nil {
			return cartRepo.Increment(existing.ID, input.Quantity)
		}
		return cartRepo.Create(&models.CartItem{
			UserID:    input.UserID,
			ProductID: input.ProductID,
			VariantID: input.VariantID,
			Quantity:  input.Quantity,
		})
	})
}

// SetQuantity 覆盖购物车行数量
func (s *CartService) SetQuantity(userID, productID, variantID uint, quantity int) (*models.CartItem, error) {
	if userID == 0 || productID == 0 || variantID == 0 {
		return nil, ErrMissingCartIdentifiers
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	affected, err := s.cartRepo.SetQuantity(userID, productID, variantID, quantity)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrCartItemNotFound
	}
	item, err := s.cartRepo.Get(userID, productID, variantID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrCartItemNotFound
	}
	return item, nil
}

// Remove 删除购物车行；variantID 为 0 时删除该商品全部规格
func (s *CartService) Remove(userID, productID, variantID uint) error {
	if userID == 0 || productID == 0 {
		return ErrMissingCartIdentifiers
	}
	affected, err := s.cartRepo.Remove(userID, productID, variantID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// Clear 清空购物车
func (s *CartService) Clear(userID uint) error {
	if userID == 0 {
		return ErrMissingCartIdentifiers
	}
	affected, err := s.cartRepo.ClearByUser(userID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartNotFound
	}
	return nil
}

// ListLines 购物车原始行
func (s *CartService) ListLines(userID uint) ([]models.CartItem, error) {
	items, err := s.cartRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.CartItem{}
	}
	return items, nil
}

// View 购物车定价视图
func (s *CartService) View(userID uint) (*CartView, error) {
	if userID == 0 {
		return nil, ErrMissingCartIdentifiers
	}
	rows, err := s.cartRepo.ListWithPricing(userID)
	if err != nil {
		return nil, err
	}
	view := &CartView{Items: make([]CartLineDetail, 0, len(rows))}
	for _, row := range rows {
		lineTotal := row.LineTotal()
		view.Items = append(view.Items, CartLineDetail{
			ID:            row.ID,
			ProductID:     row.ProductID,
			VariantID:     row.VariantID,
			Quantity:      row.Quantity,
			ProductName:   row.ProductName,
			ImageURL:      row.ImageURL,
			Brand:         row.Brand,
			Price:         row.Price,
			StockQuantity: row.StockQuantity,
			VariantType:   row.VariantType,
			VariantValue:  row.VariantValue,
			LineTotal:     lineTotal,
		})
		view.Subtotal = view.Subtotal.Add(lineTotal)
	}
	return view, nil
}
