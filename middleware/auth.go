package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go-storefront/models"
	"go-storefront/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Key type for context
type contextKey string

const UserContextKey = contextKey("user")

// CookieName is the HTTP-only cookie carrying the session token.
const CookieName = "jwt"

// Auth resolves the session token into a user record.
type Auth struct {
	Users  *mongo.Collection
	Tokens *utils.TokenManager
}

func NewAuth(db *mongo.Database, tokens *utils.TokenManager) *Auth {
	return &Auth{Users: db.Collection(utils.UsersCollection), Tokens: tokens}
}

// Protect verifies the session token and attaches the user to the request context
func (a *Auth) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := TokenFromRequest(r)
		if tokenStr == "" {
			utils.RespondWithError(w, http.StatusUnauthorized, "Not authorized, no token")
			return
		}

		claims, err := a.Tokens.Parse(tokenStr, utils.PurposeSession)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			utils.RespondWithError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		var user models.User
		opts := options.FindOne().SetProjection(bson.M{"password": 0})
		err = a.Users.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&user)
		if err != nil {
			if !utils.IsNotFound(err) {
				logrus.WithError(err).Error("failed to load session user")
			}
			utils.RespondWithError(w, http.StatusUnauthorized, "Not authorized, token failed")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), &user)))
	})
}

// Admin ensures that the user has admin privileges. It must run after Protect.
func (a *Auth) Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsAdmin {
			utils.RespondWithError(w, http.StatusUnauthorized, "Not authorized as admin")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenFromRequest reads the session cookie, falling back to a Bearer header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	return user, ok && user != nil
}
