package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SaleStatusCompleted = "Completed"
	SaleStatusRefunded  = "Refunded"
)

const (
	PaymentCash = "Cash"
	PaymentCard = "Card"
)

const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleCashier = "cashier"
	RoleStock   = "stock"
)

const (
	AuditRefundSale   = "REFUND_SALE"
	AuditReceiveStock = "RECEIVE_STOCK"
	AuditRedeemPoints = "REDEEM_POINTS"
	AuditDeleteStore  = "DELETE_STORE"
	AuditCreateUser   = "CREATE_USER"
)

type Store struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	StoreID      string    `json:"store_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Vendor struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	CostPrice     decimal.Decimal `json:"cost_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	StockQuantity int             `json:"stock_quantity"`
	ReorderLevel  int             `json:"reorder_level"`
	SupplierID    string          `json:"supplier_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Customer struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email,omitempty"`
	LoyaltyPoints int       `json:"loyalty_points"`
	CreatedAt     time.Time `json:"created_at"`
	RecentSales   []Sale    `json:"recent_sales,omitempty"`
}

type Sale struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	CostTotal     decimal.Decimal `json:"cost_total"`
	ProfitTotal   decimal.Decimal `json:"profit_total"`
	PaymentMethod string          `json:"payment_method"`
	Status        string          `json:"status"`
	UserID        string          `json:"user_id"`
	StoreID       string          `json:"store_id"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleItem      `json:"items,omitempty"`
	User          *SaleUser       `json:"user,omitempty"`
	Customer      *SaleCustomer   `json:"customer,omitempty"`
}

// SaleItem values are copied from the product when the sale is created and
// never recomputed afterwards.
type SaleItem struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	ProductSKU  string          `json:"product_sku,omitempty"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	Profit      decimal.Decimal `json:"profit"`
}

type SaleUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type SaleCustomer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type StockInLog struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name,omitempty"`
	VendorID         string          `json:"vendor_id,omitempty"`
	VendorName       string          `json:"vendor_name,omitempty"`
	UserID           string          `json:"user_id"`
	UserName         string          `json:"user_name,omitempty"`
	QuantityReceived int             `json:"quantity_received"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	CreatedAt        time.Time       `json:"created_at"`
}

type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

type Actor struct {
	UserID   string
	Username string
	Role     string
	StoreID  string
}
