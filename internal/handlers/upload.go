package handlers

import (
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadResponse carries the retrievable URL and the original filename back
// to the uploading client.
type UploadResponse struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}

// Upload stores a multipart file under a uuid-based name and returns its URL.
// Errors are surfaced to the uploader only, never broadcast to a room.
func Upload(dir string, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
			return
		}

		if file.Size > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("file exceeds the %d byte limit", maxBytes),
			})
			return
		}

		// uuid + original extension avoids collisions between same-named uploads
		stored := uuid.New().String() + filepath.Ext(file.Filename)
		if err := c.SaveUploadedFile(file, filepath.Join(dir, stored)); err != nil {
			log.Printf("Failed to store upload %s: %v", file.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store file"})
			return
		}

		c.JSON(http.StatusOK, UploadResponse{
			FileURL:  "/uploads/" + stored,
			FileName: file.Filename,
		})
	}
}
