package recipe

import (
	"fmt"
	"io"
	"strings"

	"github.com/mdp/qrterminal/v3"
	"github.com/morgen873/kisson/internal/models"
)

// QRPayload builds the durable QR URL for a recipe id. Deterministic and
// independent of any AI-suggested QR content.
func QRPayload(origin, recipeID string) string {
	return strings.TrimRight(origin, "/") + "/recipe/" + recipeID
}

// RenderLabel writes the printable kiosk label for a recipe: title header
// plus the QR code pointing at the recipe URL. The kiosk's thermal label
// printer consumes this as plain text.
func RenderLabel(w io.Writer, r *models.RecipeResult) {
	fmt.Fprintf(w, "KissOn - %s\n\n", r.Title)
	qrterminal.GenerateHalfBlock(r.QRData, qrterminal.L, w)
	fmt.Fprintf(w, "\n%s\n", r.QRData)
}
