package server

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"net/http"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/esimmock/internal/observability/logger"
	"go.uber.org/zap"
)

const qrCodeSize = 300

func (s *Server) GetQRCode(c *gin.Context) {
	image, ok := s.renderEsimQR(c)
	if !ok {
		return
	}
	c.Data(http.StatusOK, "image/png", image)
}

func (s *Server) GetQRCodeBase64(c *gin.Context) {
	image, ok := s.renderEsimQR(c)
	if !ok {
		return
	}
	c.String(http.StatusOK, base64.StdEncoding.EncodeToString(image))
}

func (s *Server) renderEsimQR(c *gin.Context) ([]byte, bool) {
	ctx := c.Request.Context()
	esim, err := s.esimSvc.Get(ctx, strings.TrimSpace(c.Param("esimId")))
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}

	image, err := renderQRCode(esim.LPA, qrCodeSize)
	if err != nil {
		logger.WithEsim(logger.FromContext(ctx), esim.EsimID).Error("qr code render failed", zap.Error(err))
		AbortWithError(c, err)
		return nil, false
	}
	return image, true
}

// renderQRCode encodes content as a size x size PNG.
func renderQRCode(content string, size int) ([]byte, error) {
	code, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
