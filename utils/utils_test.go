package utils

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"go-storefront/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	token, err := tm.GenerateJWT("abc123")
	require.NoError(t, err)

	claims, err := tm.Parse(token, PurposeSession)
	require.NoError(t, err)
	assert.Equal(t, "abc123", claims.UserID)
}

func TestTokenPurposeIsChecked(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)

	reset, err := tm.GenerateResetToken("abc123", models.ResetTokenTTL)
	require.NoError(t, err)

	_, err = tm.Parse(reset, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims, err := tm.Parse(reset, PurposeReset)
	require.NoError(t, err)
	assert.Equal(t, "abc123", claims.UserID)
}

func TestTokenRejectsOtherSecretAndExpiry(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour).GenerateJWT("abc123")
	require.NoError(t, err)
	_, err = NewTokenManager("two", time.Hour).Parse(token, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewTokenManager("one", -time.Minute).GenerateJWT("abc123")
	require.NoError(t, err)
	_, err = NewTokenManager("one", time.Hour).Parse(expired, PurposeSession)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestCheckImageType(t *testing.T) {
	assert.NoError(t, CheckImageType("photo.JPG", "image/jpeg"))
	assert.NoError(t, CheckImageType("photo.png", "image/png; charset=binary"))
	assert.NoError(t, CheckImageType("photo.webp", "image/webp"))

	assert.ErrorIs(t, CheckImageType("photo.gif", "image/gif"), ErrImageOnly)
	assert.ErrorIs(t, CheckImageType("photo.png", "image/jpeg"), ErrImageOnly)
	assert.ErrorIs(t, CheckImageType("script.js", "image/png"), ErrImageOnly)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageStoreStore(t *testing.T) {
	store := NewImageStore(t.TempDir(), "/uploads/")

	_, err := store.Store("fake.png", []byte("not an image"))
	assert.ErrorIs(t, err, ErrImageOnly)

	name, err := store.Store("small.png", encodePNG(t, 4, 4))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".png"))
	_, err = os.Stat(filepath.Join(store.Dir(), name))
	assert.NoError(t, err)
}

func TestImageStoreDownscalesLargeImages(t *testing.T) {
	store := NewImageStore(t.TempDir(), "/uploads")

	name, err := store.Store("big.png", encodePNG(t, MaxImageDimension+400, 10))
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(store.Dir(), name))
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, MaxImageDimension, cfg.Width)
}

func TestImageStoreSaveAllRequiresFiles(t *testing.T) {
	store := NewImageStore(t.TempDir(), "/uploads")
	_, err := store.SaveAll(nil)
	assert.ErrorIs(t, err, ErrNoFilesToSave)
}

func TestNopCacheAlwaysMisses(t *testing.T) {
	var c Cache = NopCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, TopProductsKey, []string{"a"}, time.Minute))
	var out []string
	assert.ErrorIs(t, c.Get(ctx, TopProductsKey, &out), ErrCacheMiss)
	assert.NoError(t, c.Delete(ctx, TopProductsKey))
}

type recordingTransport struct {
	to, subject, body string
	err               error
}

func (r *recordingTransport) Send(_ context.Context, to, subject, body string) error {
	r.to, r.subject, r.body = to, subject, body
	return r.err
}

func TestEmailServiceRendersTemplates(t *testing.T) {
	tr := &recordingTransport{}
	es := NewEmailService(tr, "https://shop.example.com/")

	require.NoError(t, es.SendVerificationEmail(context.Background(), "jane@example.com", "123456"))
	assert.Equal(t, "jane@example.com", tr.to)
	assert.Contains(t, tr.body, "123456")
	assert.Contains(t, tr.body, "10 minutes")

	link := es.ResetLink("tok")
	assert.Equal(t, "https://shop.example.com/reset-password?token=tok", link)
	require.NoError(t, es.SendResetPasswordEmail(context.Background(), "jane@example.com", link))
	assert.Contains(t, tr.body, "reset-password?token=tok")

	order := &models.Order{
		ID:              primitive.NewObjectID(),
		ShippingAddress: models.ShippingAddress{Address: "1 Main St", City: "Pokhara", PostalCode: "33700", Country: "Nepal"},
		OrderItems:      []models.OrderItem{{Name: "Headphones", Qty: 2}},
		Prices:          models.Prices{TotalPrice: 138},
	}
	require.NoError(t, es.SendOrderDeliveredEmail(context.Background(), "jane@example.com", order))
	assert.Contains(t, tr.body, order.ID.Hex())
	assert.Contains(t, tr.body, "Headphones x 2")
	assert.Contains(t, tr.body, "$138.00")
}

func TestEmailServicePropagatesTransportErrors(t *testing.T) {
	es := NewEmailService(&recordingTransport{err: errors.New("boom")}, "")
	assert.Error(t, es.SendVerificationEmail(context.Background(), "jane@example.com", "123456"))
}

func TestNewTransport(t *testing.T) {
	tr, err := NewTransport("", "", "")
	require.NoError(t, err)
	assert.IsType(t, LogTransport{}, tr)

	_, err = NewTransport("sendgrid", "", "shop@example.com")
	assert.Error(t, err)

	tr, err = NewTransport("Postmark", "token", "shop@example.com")
	require.NoError(t, err)
	assert.IsType(t, &PostmarkTransport{}, tr)

	_, err = NewTransport("pigeon", "", "")
	assert.Error(t, err)
}

func TestDecodeJSONMessages(t *testing.T) {
	var dst struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	err := DecodeJSON(httptest.NewRequest("POST", "/", strings.NewReader("{")), &dst)
	assert.EqualError(t, err, "Invalid input")

	err = DecodeJSON(httptest.NewRequest("POST", "/", strings.NewReader(`{"email":"x","password":"abc"}`)), &dst)
	assert.EqualError(t, err, "Invalid email format, password must be at least 6")
}

func TestGoogleVerifierNeedsClientID(t *testing.T) {
	_, err := NewGoogleVerifier("").Verify(context.Background(), "token")
	assert.Error(t, err)
}
