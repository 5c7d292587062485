package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/service"
)

// maxRestoreBody размер загружаемой копии базы
const maxRestoreBody = 5 << 20

type Server struct {
	engine        *gin.Engine
	products      *service.ProductService
	orders        *service.OrderService
	payments      *service.PaymentService
	subscriptions *service.SubscriptionService
	backup        *service.BackupService
	limiter       RateLimiter
	auth          AuthConfig
	log           *slog.Logger
}

// Deps зависимости HTTP-сервера
type Deps struct {
	Products      *service.ProductService
	Orders        *service.OrderService
	Payments      *service.PaymentService
	Subscriptions *service.SubscriptionService
	Backup        *service.BackupService
	Limiter       RateLimiter // nil disables the order rate limit
	Auth          AuthConfig
	CORSOrigins   []string
	Logger        *slog.Logger
}

func NewServer(d Deps) *Server {
	r := gin.New()
	s := &Server{
		engine:        r,
		products:      d.Products,
		orders:        d.Orders,
		payments:      d.Payments,
		subscriptions: d.Subscriptions,
		backup:        d.Backup,
		limiter:       d.Limiter,
		auth:          d.Auth,
		log:           d.Logger,
	}
	r.Use(withRequestID(), s.withAccessLog(), s.withRecovery(), withCORS(d.CORSOrigins))
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/health", s.health)

	api := s.engine.Group("/api")
	admin := s.adminOnly()
	{
		products := api.Group("/products")
		products.GET("", s.listProducts)
		products.GET(":id", s.getProduct)
		products.POST("", admin, s.createProduct)
		products.POST("update", admin, s.updateProductByBody)
		products.PATCH(":id", admin, s.updateProduct)
		products.PUT(":id", admin, s.updateProduct)
		products.DELETE(":id", admin, s.deleteProduct)

		orders := api.Group("/orders")
		orders.POST("", s.withRateLimit(), s.createOrder)
		orders.GET("", admin, s.listOrders)
		orders.GET(":id", admin, s.getOrder)
		orders.PUT(":id/status", admin, s.updateOrderStatus)
		orders.DELETE(":id", admin, s.deleteOrder)

		api.GET("/payment-key", s.paymentKey)
		api.GET("/payment-code/:amount", s.paymentCode)
		api.GET("/payment-code/:amount/:transactionId", s.paymentCode)

		push := api.Group("/push")
		push.GET("public-key", s.pushPublicKey)
		push.POST("subscribe", s.subscribe)
		push.POST("unsubscribe", s.unsubscribe)

		token := s.tokenOnly()
		api.GET("/backup", token, s.exportBackup)
		api.GET("/debug/db", token, s.debugDB)
		api.POST("/restore", token, limitBody(maxRestoreBody), s.restore)
	}
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Product handlers
type createProductReq struct {
	Name     string          `json:"name" binding:"required"`
	Price    decimal.Decimal `json:"price"`
	Stock    int64           `json:"stock" binding:"gte=0"`
	ImageRef string          `json:"imageRef"`
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param input body createProductReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /api/products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Create(c, domain.Product{Name: req.Name, Price: req.Price, Stock: req.Stock, ImageRef: req.ImageRef})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	p, err := s.products.GetByID(c, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Update product (partial)
// @Description Only the fields present in the body change.
// @Tags products
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param id path int true "Product ID"
// @Param input body service.ProductPatch true "Fields to change"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/products/{id} [patch]
// @Router /api/products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req service.ProductPatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Patch(c, id, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type updateByBodyReq struct {
	ID int64 `json:"id" binding:"required"`
	service.ProductPatch
}

// @Summary Update product with id in body
// @Tags products
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param input body updateByBodyReq true "id plus fields to change"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/products/update [post]
func (s *Server) updateProductByBody(c *gin.Context) {
	var req updateByBodyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.products.Patch(c, req.ID, req.ProductPatch)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Security BasicAuth
// @Param id path int true "Product ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.products.Delete(c, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param q query string false "Name contains"
// @Param min_price query number false "Min price"
// @Param max_price query number false "Max price"
// @Param in_stock query bool false "Only products with stock > 0"
// @Success 200 {array} domain.Product
// @Router /api/products [get]
func (s *Server) listProducts(c *gin.Context) {
	var f repository.ProductFilter
	if q := c.Query("q"); q != "" {
		f.NameSubstring = q
	}
	if v := c.Query("min_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MinPrice = &x
		}
	}
	if v := c.Query("max_price"); v != "" {
		if x, err := decimal.NewFromString(v); err == nil {
			f.MaxPrice = &x
		}
	}
	if v := c.Query("in_stock"); v != "" {
		f.InStock, _ = strconv.ParseBool(v)
	}
	list, err := s.products.List(c, f)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Order handlers

// @Summary Submit order
// @Description Prices come from the catalog; stock is decremented and PIX orders get a payment code.
// @Tags orders
// @Accept json
// @Produce json
// @Param input body service.SubmitOrderInput true "Order"
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 429 {object} map[string]string
// @Router /api/orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req service.SubmitOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.orders.SubmitOrder(c, req)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary List orders
// @Tags orders
// @Produce json
// @Security BasicAuth
// @Success 200 {array} domain.Order
// @Router /api/orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListOrders(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Security BasicAuth
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	o, err := s.orders.GetOrder(c, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required"`
}

// @Summary Update order status
// @Tags orders
// @Accept json
// @Produce json
// @Security BasicAuth
// @Param id path int true "Order ID"
// @Param input body updateStatusReq true "New status"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/orders/{id}/status [put]
func (s *Server) updateOrderStatus(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	o, err := s.orders.UpdateOrderStatus(c, id, req.Status)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Delete order
// @Tags orders
// @Security BasicAuth
// @Param id path int true "Order ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/orders/{id} [delete]
func (s *Server) deleteOrder(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.orders.DeleteOrder(c, id); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
