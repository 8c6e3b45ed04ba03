package repository

// ProductListFilter 查询商品列表的过滤条件（名称类条件均大小写不敏感）
type ProductListFilter struct {
	Category string
	Brand    string
	Search   string
}

// UserListFilter 查询用户列表的过滤条件
type UserListFilter struct {
	Page     int
	PageSize int
	Keyword  string
}
