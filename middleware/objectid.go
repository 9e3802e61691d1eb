package middleware

import (
	"fmt"
	"net/http"

	"go-storefront/utils"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CheckObjectID rejects requests whose {id} path value is not a valid ObjectID.
func CheckObjectID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		if !primitive.IsValidObjectID(id) {
			utils.RespondWithError(w, http.StatusNotFound, fmt.Sprintf("Invalid ObjectId of: %s", id))
			return
		}
		next.ServeHTTP(w, r)
	})
}
