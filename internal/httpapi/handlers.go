package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

func (a *API) handleLogin(c *gin.Context) {
	if !a.loginLimiter.Allow(c.ClientIP()) {
		writeError(c, a.logger, http.StatusTooManyRequests, errors.New("too many login attempts, try again later"))
		return
	}

	var req domain.LoginRequest
	if !a.bindJSON(c, &req) {
		return
	}
	resp, err := a.auth.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) || errors.Is(err, errInactiveAccount) {
			a.logger.Info("login rejected", zap.String("username", req.Username), zap.Error(err))
			writeError(c, a.logger, http.StatusUnauthorized, err)
			return
		}
		writeError(c, a.logger, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) handleCreateSale(c *gin.Context) {
	var req domain.CreateSaleRequest
	if !a.bindJSON(c, &req) {
		return
	}
	sale, err := a.service.CreateSale(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sale)
}

func (a *API) handleListSales(c *gin.Context) {
	sales, err := a.service.ListSales(c.Request.Context(), a.limit(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": sales})
}

func (a *API) handleGetSale(c *gin.Context) {
	sale, err := a.service.GetSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (a *API) handleRefundSale(c *gin.Context) {
	sale, err := a.service.RefundSale(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (a *API) handleListProducts(c *gin.Context) {
	products, err := a.service.ListProducts(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (a *API) handleCreateProduct(c *gin.Context) {
	var req domain.ProductCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	product, err := a.service.CreateProduct(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (a *API) handleGetProduct(c *gin.Context) {
	product, err := a.service.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (a *API) handleReceiveStock(c *gin.Context) {
	var req domain.ReceiveStockRequest
	if !a.bindJSON(c, &req) {
		return
	}
	result, err := a.service.ReceiveStock(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (a *API) handleListStockInLogs(c *gin.Context) {
	logs, err := a.service.ListStockInLogs(c.Request.Context(), a.limit(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock_in_logs": logs})
}

func (a *API) handleListCustomers(c *gin.Context) {
	customers, err := a.service.ListCustomers(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customers": customers})
}

func (a *API) handleCreateCustomer(c *gin.Context) {
	var req domain.CustomerCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	customer, err := a.service.CreateCustomer(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (a *API) handleGetCustomer(c *gin.Context) {
	customer, err := a.service.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (a *API) handleRedeemPoints(c *gin.Context) {
	var req domain.RedeemPointsRequest
	if !a.bindJSON(c, &req) {
		return
	}
	customer, err := a.service.RedeemPoints(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (a *API) handleListVendors(c *gin.Context) {
	vendors, err := a.service.ListVendors(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

func (a *API) handleCreateVendor(c *gin.Context) {
	var req domain.VendorCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	vendor, err := a.service.CreateVendor(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

func (a *API) handleListUsers(c *gin.Context) {
	users, err := a.service.ListUsers(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (a *API) handleCreateUser(c *gin.Context) {
	var req domain.UserCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	user, err := a.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (a *API) handleListStores(c *gin.Context) {
	stores, err := a.service.ListStores(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

func (a *API) handleCreateStore(c *gin.Context) {
	var req domain.StoreCreateRequest
	if !a.bindJSON(c, &req) {
		return
	}
	st, err := a.service.CreateStore(c.Request.Context(), req)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (a *API) handleDeleteStore(c *gin.Context) {
	if err := a.service.DeleteStore(c.Request.Context(), c.Param("id")); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleSalesSummary accepts from/to as RFC3339 timestamps or YYYY-MM-DD
// dates. A date-only "to" includes that whole day.
func (a *API) handleSalesSummary(c *gin.Context) {
	from, _, err := parseReportTime(c.Query("from"))
	if err != nil {
		a.fail(c, store.Invalid("invalid from: %v", err))
		return
	}
	to, dateOnly, err := parseReportTime(c.Query("to"))
	if err != nil {
		a.fail(c, store.Invalid("invalid to: %v", err))
		return
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1)
	}

	summary, err := a.service.SalesSummary(c.Request.Context(), from, to)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func parseReportTime(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

func (a *API) handleStockSummary(c *gin.Context) {
	summary, err := a.service.StockSummary(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (a *API) handleAuditLogs(c *gin.Context) {
	logs, err := a.service.ListAuditLogs(c.Request.Context(), a.limit(c))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit_logs": logs})
}
