// routes/routes.go
package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"go-storefront/controllers"
	"go-storefront/middleware"
	"go-storefront/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries everything RegisterRoutes wires together.
type Deps struct {
	Users      *controllers.UserController
	Products   *controllers.ProductController
	Categories *controllers.CategoryController
	Carts      *controllers.CartController
	Orders     *controllers.OrderController
	Revenue    *controllers.RevenueController
	Uploads    *controllers.UploadController
	Config     *controllers.ConfigController

	Auth          *middleware.Auth
	Visits        *middleware.VisitTracker
	AuthLimiter   *middleware.RateLimiter
	UploadDir     string
	StaticDir     string
	ServeFrontend bool
}

func chain(h http.HandlerFunc, mws ...mux.MiddlewareFunc) http.Handler {
	var handler http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		handler = mws[i](handler)
	}
	return handler
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, d Deps) {
	router.Use(middleware.Metrics)

	protect := d.Auth.Protect
	admin := d.Auth.Admin
	checkID := middleware.CheckObjectID
	limit := d.AuthLimiter.Limit

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ok"})
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Users
	users := router.PathPrefix("/api/users").Subrouter()
	users.HandleFunc("", d.Users.Register).Methods("POST")
	users.Handle("", chain(d.Users.GetUsers, protect, admin)).Methods("GET")
	users.Handle("/total", chain(d.Users.TotalUsers, protect, admin)).Methods("GET")
	users.HandleFunc("/verifycode", d.Users.VerifyCode).Methods("POST")
	users.Handle("/resendcode", chain(d.Users.ResendCode, limit)).Methods("POST")
	users.HandleFunc("/google-login", d.Users.GoogleLogin).Methods("POST")
	users.HandleFunc("/logout", d.Users.Logout).Methods("POST")
	users.Handle("/auth", chain(d.Users.Login, limit, d.Visits.Track)).Methods("POST")
	users.Handle("/forgot-password", chain(d.Users.ForgotPassword, limit)).Methods("POST")
	users.Handle("/reset-password", chain(d.Users.ResetPassword, limit)).Methods("POST")
	users.Handle("/profile", chain(d.Users.GetProfile, protect)).Methods("GET")
	users.Handle("/profile", chain(d.Users.UpdateProfile, protect)).Methods("PUT")
	users.Handle("/{id}", chain(d.Users.GetUserByID, protect, admin, checkID)).Methods("GET")
	users.Handle("/{id}", chain(d.Users.UpdateUser, protect, admin, checkID)).Methods("PUT")
	users.Handle("/{id}", chain(d.Users.DeleteUser, protect, admin, checkID)).Methods("DELETE")

	// Products
	products := router.PathPrefix("/api/products").Subrouter()
	products.HandleFunc("", d.Products.GetProducts).Methods("GET")
	products.Handle("", chain(d.Products.CreateProduct, protect, admin)).Methods("POST")
	products.HandleFunc("/top", d.Products.GetTopProducts).Methods("GET")
	products.HandleFunc("/total", d.Products.TotalProducts).Methods("GET")
	products.Handle("/checkstock", chain(d.Products.CheckStock, protect, admin)).Methods("GET")
	products.Handle("/{id}", chain(d.Products.GetProductByID, checkID)).Methods("GET")
	products.Handle("/{id}", chain(d.Products.UpdateProduct, protect, admin, checkID)).Methods("PUT")
	products.Handle("/{id}", chain(d.Products.DeleteProduct, protect, admin, checkID)).Methods("DELETE")
	products.Handle("/{id}/reviews", chain(d.Products.CreateReview, protect, checkID)).Methods("POST")
	products.Handle("/{id}/similar", chain(d.Products.SimilarProducts, checkID)).Methods("GET")

	// Categories
	router.Handle("/api/postcategory", chain(d.Categories.CreateCategory, protect, admin)).Methods("POST")
	router.HandleFunc("/api/categorylist", d.Categories.ListCategories).Methods("GET")
	router.HandleFunc("/api/allcategory", d.Categories.AllCategories).Methods("GET")
	router.HandleFunc("/api/categorydetails/{id}", d.Categories.GetCategory).Methods("GET")
	router.Handle("/api/updatecategory/{id}", chain(d.Categories.UpdateCategory, protect, admin)).Methods("PUT")
	router.Handle("/api/deletecategory/{id}", chain(d.Categories.DeleteCategory, protect, admin)).Methods("DELETE")

	// Cart
	cart := router.PathPrefix("/api/cart").Subrouter()
	cart.Use(protect)
	cart.HandleFunc("", d.Carts.GetCart).Methods("GET")
	cart.HandleFunc("", d.Carts.AddToCart).Methods("POST")
	cart.HandleFunc("/{product_id}", d.Carts.RemoveFromCart).Methods("DELETE")

	// Orders
	orders := router.PathPrefix("/api/orders").Subrouter()
	orders.Use(protect)
	orders.HandleFunc("", d.Orders.CreateOrder).Methods("POST")
	orders.Handle("", chain(d.Orders.GetOrders, admin)).Methods("GET")
	orders.HandleFunc("/mine", d.Orders.GetMyOrders).Methods("GET")
	orders.Handle("/total", chain(d.Orders.TotalOrders, admin)).Methods("GET")
	orders.Handle("/{id}", chain(d.Orders.GetOrderByID, checkID)).Methods("GET")
	orders.Handle("/{id}/pay", chain(d.Orders.PayOrder, checkID)).Methods("PUT")
	orders.Handle("/{id}/deliver", chain(d.Orders.DeliverOrder, admin, checkID)).Methods("PUT")

	// Dashboard
	router.Handle("/api/revenue", chain(d.Revenue.Revenue, protect, admin)).Methods("GET")
	router.Handle("/api/revenue/monthly", chain(d.Revenue.MonthlyRevenue, protect, admin)).Methods("GET")
	router.Handle("/api/top-selling-products", chain(d.Revenue.TopSelling, protect, admin)).Methods("GET")
	router.Handle("/api/visit/monthly", chain(d.Revenue.MonthlyVisits, protect, admin)).Methods("GET")

	router.Handle("/api/upload", chain(d.Uploads.UploadImages, protect, admin)).Methods("POST")
	router.HandleFunc("/api/config/paypal", d.Config.PayPalConfig).Methods("GET")

	router.PathPrefix("/uploads/").Handler(http.StripPrefix("/uploads/", http.FileServer(http.Dir(d.UploadDir))))

	if d.ServeFrontend {
		router.PathPrefix("/").Handler(spaHandler{staticDir: d.StaticDir, index: "index.html"})
		return
	}
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("API is running...."))
	}).Methods("GET")
}

// spaHandler serves the built frontend and falls back to index.html for
// client-side routes.
type spaHandler struct {
	staticDir string
	index     string
}

func (h spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p := filepath.Join(h.staticDir, filepath.Clean("/"+r.URL.Path))
	fi, err := os.Stat(p)
	if os.IsNotExist(err) || (err == nil && fi.IsDir()) {
		http.ServeFile(w, r, filepath.Join(h.staticDir, h.index))
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.FileServer(http.Dir(h.staticDir)).ServeHTTP(w, r)
}
