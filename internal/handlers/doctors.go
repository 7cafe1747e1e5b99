package handlers

import (
	"github.com/gin-gonic/gin"

	"carepulse-server/internal/doctors"
	"carepulse-server/internal/utils"
)

// GetDoctors returns the physician directory.
func GetDoctors(c *gin.Context) {
	utils.Success(c, "Doctors fetched successfully", doctors.All())
}
