package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go-storefront/middleware"
	"go-storefront/models"
	"go-storefront/query"
	"go-storefront/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const alreadyRegisteredMessage = "User already exist , please complete verification step to continue"

// UserController handles user-related requests
type UserController struct {
	Collection    *mongo.Collection
	EmailService  *utils.EmailService
	Tokens        *utils.TokenManager
	Google        utils.GoogleVerifier
	PageSize      int
	SecureCookies bool
}

// NewUserController creates a new UserController with EmailService
func NewUserController(db *mongo.Database, emailService *utils.EmailService, tokens *utils.TokenManager, google utils.GoogleVerifier, pageSize int, secureCookies bool) *UserController {
	return &UserController{
		Collection:    db.Collection(utils.UsersCollection),
		EmailService:  emailService,
		Tokens:        tokens,
		Google:        google,
		PageSize:      pageSize,
		SecureCookies: secureCookies,
	}
}

var withoutSecrets = bson.M{"password": 0, "verificationCode": 0, "resetPasswordToken": 0}

func (uc *UserController) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   uc.SecureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(uc.Tokens.SessionTTL().Seconds()),
	})
}

// startSession issues a session token and sets it as a cookie.
func (uc *UserController) startSession(w http.ResponseWriter, user *models.User) (string, bool) {
	token, err := uc.Tokens.GenerateJWT(user.ID.Hex())
	if err != nil {
		logrus.WithError(err).Error("failed to sign session token")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error generating token")
		return "", false
	}
	uc.setSessionCookie(w, token)
	return token, true
}

// Register creates an unverified user and emails a one-time code
func (uc *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	ctx, cancel := requestContext(r)
	defer cancel()

	var existing models.User
	err := uc.Collection.FindOne(ctx, bson.M{"email": email}).Decode(&existing)
	if err == nil {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": alreadyRegisteredMessage})
		return
	}
	if !utils.IsNotFound(err) {
		logrus.WithError(err).Error("failed to look up user")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error generating verification code")
		return
	}
	hashed, err := hashPassword(req.Password)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error hashing password")
		return
	}

	now := time.Now()
	user := models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     email,
		Password:  hashed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	user.SetVerificationCode(code, now)

	if err := uc.EmailService.SendVerificationEmail(ctx, user.Email, code); err != nil {
		logrus.WithError(err).WithField("email", user.Email).Error("failed to send verification email")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error sending verification email")
		return
	}

	if _, err := uc.Collection.InsertOne(ctx, user); err != nil {
		if utils.IsDuplicateKeyError(err) {
			utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": alreadyRegisteredMessage})
			return
		}
		logrus.WithError(err).Error("failed to create user")
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user data")
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, utils.M{
		"message": "Verification code sent to email. Complete registration by verifying the code.",
		"email":   user.Email,
	})
}

// VerifyCode marks the account verified when the emailed code matches and has not expired
func (uc *UserController) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
		Code  string `json:"code" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	if err := uc.Collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(req.Email))}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "User not found")
		return
	}

	if err := user.CheckVerificationCode(strings.TrimSpace(req.Code), time.Now()); err != nil {
		if errors.Is(err, models.ErrCodeExpired) {
			utils.RespondWithError(w, http.StatusBadRequest, "Verification code has expired")
			return
		}
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid verification code")
		return
	}

	user.MarkVerified()
	_, err := uc.Collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"isVerified":              true,
		"verificationCode":        nil,
		"verificationCodeExpires": nil,
		"updatedAt":               time.Now(),
	}})
	if err != nil {
		logrus.WithError(err).Error("failed to mark user verified")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error updating user verification status")
		return
	}

	if _, ok := uc.startSession(w, &user); !ok {
		return
	}
	summary := user.Summary()
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message": "User verified and registered successfully.",
		"_id":     summary.ID,
		"name":    summary.Name,
		"email":   summary.Email,
		"isAdmin": summary.IsAdmin,
	})
}

// ResendCode issues a fresh verification code to an unverified account
func (uc *UserController) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	if err := uc.Collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(req.Email))}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if user.IsVerified {
		utils.RespondWithError(w, http.StatusBadRequest, "User is already verified")
		return
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error generating verification code")
		return
	}
	user.SetVerificationCode(code, time.Now())

	if err := uc.EmailService.SendVerificationEmail(ctx, user.Email, code); err != nil {
		logrus.WithError(err).WithField("email", user.Email).Error("failed to resend verification email")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error sending verification email")
		return
	}

	_, err = uc.Collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"verificationCode":        user.VerificationCode,
		"verificationCodeExpires": user.VerificationCodeExpires,
		"updatedAt":               time.Now(),
	}})
	if err != nil {
		logrus.WithError(err).Error("failed to store verification code")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Verification code sent to email"})
}

// Login handles user authentication
func (uc *UserController) Login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &creds); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	err := uc.Collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(creds.Email))}).Decode(&user)
	if err != nil || !checkPassword(user.Password, creds.Password) {
		if err != nil && !utils.IsNotFound(err) {
			logrus.WithError(err).Error("failed to look up user")
		}
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if !user.IsVerified {
		utils.RespondWithError(w, http.StatusBadRequest, "Email not verified")
		return
	}

	if _, ok := uc.startSession(w, &user); !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, user.Summary())
}

// Logout clears the session cookie
func (uc *UserController) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   uc.SecureCookies,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Logout successfully"})
}

// ForgotPassword stores a short-lived reset token and emails the reset link
func (uc *UserController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	if err := uc.Collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(req.Email))}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	token, err := uc.Tokens.GenerateResetToken(user.ID.Hex(), models.ResetTokenTTL)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error generating token")
		return
	}
	user.SetResetToken(token, time.Now())

	_, err = uc.Collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"resetPasswordToken":   user.ResetPasswordToken,
		"resetPasswordExpires": user.ResetPasswordExpires,
		"updatedAt":            time.Now(),
	}})
	if err != nil {
		logrus.WithError(err).Error("failed to store reset token")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	if err := uc.EmailService.SendResetPasswordEmail(ctx, user.Email, uc.EmailService.ResetLink(token)); err != nil {
		logrus.WithError(err).WithField("email", user.Email).Error("failed to send reset email")
		utils.RespondWithError(w, http.StatusInternalServerError, "Error sending reset email")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Password reset email sent"})
}

// ResetPassword sets a new password when the reset token is valid, then voids the token
func (uc *UserController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token" validate:"required"`
		Password        string `json:"password" validate:"required"`
		ConfirmPassword string `json:"confirmPassword" validate:"eqfield=Password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims, err := uc.Tokens.Parse(req.Token, utils.PurposeReset)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}
	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	err = uc.Collection.FindOne(ctx, bson.M{
		"_id":                  userID,
		"resetPasswordToken":   req.Token,
		"resetPasswordExpires": bson.M{"$gt": time.Now()},
	}).Decode(&user)
	if err != nil || !user.ResetTokenValid(req.Token, time.Now()) {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid or expired token")
		return
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error hashing password")
		return
	}
	user.ClearResetToken()

	_, err = uc.Collection.UpdateOne(ctx, bson.M{"_id": user.ID, "resetPasswordToken": req.Token}, bson.M{"$set": bson.M{
		"password":             hashed,
		"resetPasswordToken":   nil,
		"resetPasswordExpires": nil,
		"updatedAt":            time.Now(),
	}})
	if err != nil {
		logrus.WithError(err).Error("failed to reset password")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Password reset successful"})
}

// GoogleLogin signs in with a Google ID token, provisioning a verified user on first use
func (uc *UserController) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token" validate:"required"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErrorField(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	identity, err := uc.Google.Verify(ctx, req.Token)
	if err != nil {
		logrus.WithError(err).Warn("google login rejected")
		utils.RespondWithErrorField(w, http.StatusBadRequest, "Failed to authenticate user. Please try again.")
		return
	}
	if !identity.EmailVerified {
		utils.RespondWithErrorField(w, http.StatusBadRequest, "Google login failed. Email not verified.")
		return
	}

	email := strings.ToLower(identity.Email)
	var user models.User
	err = uc.Collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	switch {
	case err == nil:
	case utils.IsNotFound(err):
		hashed, herr := hashPassword(uuid.NewString())
		if herr != nil {
			utils.RespondWithErrorField(w, http.StatusInternalServerError, "Error hashing password")
			return
		}
		now := time.Now()
		user = models.User{
			Name:       identity.Name,
			Email:      email,
			Password:   hashed,
			IsVerified: true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		res, ierr := uc.Collection.InsertOne(ctx, user)
		if ierr != nil {
			logrus.WithError(ierr).Error("failed to provision google user")
			utils.RespondWithErrorField(w, http.StatusBadRequest, "Failed to authenticate user. Please try again.")
			return
		}
		user.ID = res.InsertedID.(primitive.ObjectID)
	default:
		logrus.WithError(err).Error("failed to look up user")
		utils.RespondWithErrorField(w, http.StatusInternalServerError, "Database error")
		return
	}

	token, ok := uc.startSession(w, &user)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"token": token, "user": user.Summary()})
}

// GetProfile retrieves the authenticated user's profile
func (uc *UserController) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user.Summary())
}

// UpdateProfile changes the caller's name, email or password
func (uc *UserController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email" validate:"omitempty,email"`
		Password string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	set := bson.M{"updatedAt": time.Now()}
	if name := strings.TrimSpace(req.Name); name != "" {
		set["name"] = name
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		set["email"] = email
	}
	if req.Password != "" {
		hashed, err := hashPassword(req.Password)
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "Error hashing password")
			return
		}
		set["password"] = hashed
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var updated models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutSecrets)
	err := uc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": user.ID}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		switch {
		case utils.IsNotFound(err):
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
		case utils.IsDuplicateKeyError(err):
			utils.RespondWithError(w, http.StatusBadRequest, "Email already in use")
		default:
			logrus.WithError(err).Error("failed to update profile")
			utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, updated.Summary())
}

// GetUsers lists users for admins, filtered by keyword over name or email
func (uc *UserController) GetUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := query.NewPage(q.Get("pageNumber"), uc.PageSize)
	filter := query.KeywordFilter(q.Get("keyword"), "name", "email")

	ctx, cancel := requestContext(r)
	defer cancel()

	count, err := uc.Collection.CountDocuments(ctx, filter)
	if err != nil {
		logrus.WithError(err).Error("failed to count users")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	opts := options.Find().SetSkip(page.Skip()).SetLimit(page.Limit()).SetProjection(withoutSecrets)
	cursor, err := uc.Collection.Find(ctx, filter, opts)
	if err != nil {
		logrus.WithError(err).Error("failed to list users")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, query.Listing("users", users, page, count))
}

// GetUserByID returns one user without credentials
func (uc *UserController) GetUserByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	opts := options.FindOne().SetProjection(withoutSecrets)
	if err := uc.Collection.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

// UpdateUser lets an admin change a user's name, email and admin flag
func (uc *UserController) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email" validate:"omitempty,email"`
		IsAdmin bool   `json:"isAdmin"`
	}
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	set := bson.M{"isAdmin": req.IsAdmin, "updatedAt": time.Now()}
	if name := strings.TrimSpace(req.Name); name != "" {
		set["name"] = name
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" {
		set["email"] = email
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var updated models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetProjection(withoutSecrets)
	err = uc.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		switch {
		case utils.IsNotFound(err):
			utils.RespondWithError(w, http.StatusNotFound, "User not found")
		case utils.IsDuplicateKeyError(err):
			utils.RespondWithError(w, http.StatusBadRequest, "Email already in use")
		default:
			logrus.WithError(err).Error("failed to update user")
			utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		}
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updated.Summary())
}

// DeleteUser removes a non-admin user
func (uc *UserController) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	ctx, cancel := requestContext(r)
	defer cancel()

	var user models.User
	if err := uc.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}
	if user.IsAdmin {
		utils.RespondWithError(w, http.StatusBadRequest, "Cannot delete admin user")
		return
	}

	if _, err := uc.Collection.DeleteOne(ctx, bson.M{"_id": user.ID, "isAdmin": false}); err != nil {
		logrus.WithError(err).Error("failed to delete user")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "User deleted successfully"})
}

// TotalUsers counts all users
func (uc *UserController) TotalUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := requestContext(r)
	defer cancel()

	total, err := uc.Collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		logrus.WithError(err).Error("failed to count users")
		utils.RespondWithError(w, http.StatusInternalServerError, "Database error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"totalUsers": total})
}

// PromoteAdmin grants the admin flag to the user with email. Used by the CLI.
func PromoteAdmin(ctx context.Context, users *mongo.Collection, email string) error {
	res, err := users.UpdateOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}, bson.M{"$set": bson.M{"isAdmin": true, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
