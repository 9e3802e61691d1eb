package controllers

import (
	"errors"
	"net/http"

	"go-storefront/utils"

	"github.com/sirupsen/logrus"
)

const maxUploadMemory = 32 << 20

// UploadController accepts product image uploads
type UploadController struct {
	Images *utils.ImageStore
}

func NewUploadController(images *utils.ImageStore) *UploadController {
	return &UploadController{Images: images}
}

// UploadImages stores the files sent in the "images" multipart field
func (uc *UploadController) UploadImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, utils.ErrNoFilesToSave.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	paths, err := uc.Images.SaveAll(r.MultipartForm.File["images"])
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrImageOnly), errors.Is(err, utils.ErrTooManyFiles), errors.Is(err, utils.ErrNoFilesToSave):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		default:
			logrus.WithError(err).Error("failed to store upload")
			utils.RespondWithError(w, http.StatusInternalServerError, "Upload failed")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"message": "Images uploaded successfully",
		"images":  paths,
	})
}
