package fonts

import (
	"fmt"

	gopdf "github.com/VantageDataChat/GoPDF2"

	"book-binder/internal/logger"
	"book-binder/internal/types"
)

const (
	samplePointSize = 14
	sampleLineStep  = 26.0
	samplePageTop   = 40.0
	samplePageLeft  = 40.0
	samplePageBot   = 800.0
)

// SampleText is rendered once per font face on the sample sheet.
const SampleText = "The quick brown fox jumps over the lazy dog 0123456789"

// WriteSampleSheet generates a PDF with one line per font, set in
// that font. Faces that fail to load are skipped with a warning so a
// single broken font file cannot sink the whole sheet.
func WriteSampleSheet(fonts []Font, outPath string) error {
	if len(fonts) == 0 {
		return types.NewAppError(types.ErrInvalidInput, "no fonts to sample", nil)
	}

	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	y := samplePageTop
	loaded := 0
	for i, font := range fonts {
		key := fmt.Sprintf("font-%d", i)
		if err := pdf.AddTTFFont(key, font.Path); err != nil {
			logger.Warn("font skipped on sample sheet",
				logger.String("family", font.Family),
				logger.String("path", font.Path),
				logger.Err(err))
			continue
		}
		if err := pdf.SetFont(key, "", samplePointSize); err != nil {
			logger.Warn("font unusable on sample sheet",
				logger.String("family", font.Family), logger.Err(err))
			continue
		}

		if y > samplePageBot {
			pdf.AddPage()
			y = samplePageTop
		}
		pdf.SetXY(samplePageLeft, y)
		label := font.Family
		if font.Style != "" {
			label += " " + font.Style
		}
		if err := pdf.Cell(nil, label+": "+SampleText); err != nil {
			return types.NewAppError(types.ErrInternal, "sample sheet write failed", err)
		}
		y += sampleLineStep
		loaded++
	}

	if loaded == 0 {
		return types.NewAppError(types.ErrTool, "no font could be loaded for the sample sheet", nil)
	}
	if err := pdf.WritePdf(outPath); err != nil {
		return types.NewAppError(types.ErrInternal, "sample sheet not written", err)
	}
	logger.Info("font sample sheet written",
		logger.String("path", outPath), logger.Int("fonts", loaded))
	return nil
}
