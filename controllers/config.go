package controllers

import (
	"net/http"

	"go-storefront/utils"
)

// ConfigController exposes client-side configuration
type ConfigController struct {
	PayPalClientID string
}

func NewConfigController(paypalClientID string) *ConfigController {
	return &ConfigController{PayPalClientID: paypalClientID}
}

// PayPalConfig returns the PayPal client id for the checkout button
func (cc *ConfigController) PayPalConfig(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"clientId": cc.PayPalClientID})
}
