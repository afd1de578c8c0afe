package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type UserCreateRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName" binding:"required"`
	Role     string `json:"role" binding:"required"`
	StoreID  string `json:"storeId,omitempty"`
}

type CartItem struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type CreateSaleRequest struct {
	CustomerID    string     `json:"customerId,omitempty"`
	PaymentMethod string     `json:"paymentMethod" binding:"required"`
	Items         []CartItem `json:"items" binding:"required,min=1,dive"`
}

type ReceiveStockItem struct {
	ProductID        string          `json:"productId"`
	QuantityReceived int             `json:"quantityReceived" binding:"required,gt=0"`
	CostPrice        decimal.Decimal `json:"costPrice"`
}

type ReceiveStockRequest struct {
	VendorID string             `json:"vendorId,omitempty"`
	Items    []ReceiveStockItem `json:"items" binding:"required,min=1,dive"`
}

type ReceiveStockResult struct {
	Message        string `json:"message"`
	ItemsProcessed int    `json:"itemsProcessed"`
}

type RedeemPointsRequest struct {
	Points int `json:"points" binding:"required,gt=0"`
}

type ProductCreateRequest struct {
	SKU           string          `json:"sku" binding:"required"`
	Name          string          `json:"name" binding:"required"`
	Category      string          `json:"category"`
	CostPrice     decimal.Decimal `json:"costPrice"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	StockQuantity int             `json:"stockQuantity" binding:"gte=0"`
	ReorderLevel  int             `json:"reorderLevel" binding:"gte=0"`
	SupplierID    string          `json:"supplierId,omitempty"`
}

type CustomerCreateRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" binding:"required"`
	Email string `json:"email,omitempty"`
}

type VendorCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	ContactName string `json:"contactName,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

type StoreCreateRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address,omitempty"`
}

type SalesSummary struct {
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	NumberOfSales    int             `json:"number_of_sales"`
	AverageSaleValue decimal.Decimal `json:"average_sale_value"`
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
}

type StockSummary struct {
	TotalProducts       int             `json:"total_products"`
	TotalInventoryValue decimal.Decimal `json:"total_inventory_value"`
	LowStockProducts    []Product       `json:"low_stock_products"`
}
