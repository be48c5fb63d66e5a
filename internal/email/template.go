package email

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/tradingbrain/licensing/internal/types"
)

//go:embed templates/*
var templateFS embed.FS

var (
	licenseHTML = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/license.html"))
	licenseText = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/license.txt"))
)

type licenseTemplateData struct {
	LicenseKey string
	TierName   string
}

// LicenseSubject returns the subject line for a license email of the given tier
func LicenseSubject(tier types.LicenseTier) string {
	return "Your TradingBrain " + tier.DisplayName() + " - License Key"
}

// RenderLicense renders the HTML and plain text bodies of a license email
func RenderLicense(licenseKey string, tier types.LicenseTier) (html string, text string, err error) {
	data := licenseTemplateData{
		LicenseKey: licenseKey,
		TierName:   tier.DisplayName(),
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := licenseHTML.Execute(&htmlBuf, data); err != nil {
		return "", "", err
	}
	if err := licenseText.Execute(&textBuf, data); err != nil {
		return "", "", err
	}
	return htmlBuf.String(), textBuf.String(), nil
}
