package enrich

import (
	"fmt"
	"strings"

	"github.com/sells-group/place-import/internal/model"
)

const systemPrompt = `You write short editorial copy for a curated city guide.
Respond with a single JSON object and nothing else.`

const outputInstructions = `Never mention star ratings, review counts, reviewers or what reviews say.
The copy must read as an editor's own voice, not as a summary of reviews.

Return JSON with these fields:
- description: string, 2-3 sentences, 40-80 words
- handle: string, the place's Instagram handle without "@", or "" if unknown`

// categoryBriefs steer tone per coarse category.
var categoryBriefs = map[model.Category]string{
	model.CategoryFashion: `This is a fashion shop. Describe the style of clothing or accessories,
the kind of shopper it suits and what makes browsing there distinctive.`,
	model.CategoryFood: `This is a place to eat. Describe the cuisine, signature dishes if known,
and the atmosphere of the room.`,
	model.CategoryCoffee: `This is a coffee or tea spot. Describe what they pour, any baked goods,
and whether it is a place to linger or grab and go.`,
	model.CategoryHomeGoods: `This is a home goods shop. Describe the kind of objects, furniture or
decor it carries and the aesthetic it leans toward.`,
	model.CategoryMuseum: `This is a museum or gallery. Describe the collection or exhibition focus,
the building, and who would enjoy a visit.`,
}

const defaultBrief = `Describe what the place offers and what makes it worth a visit.`

func briefFor(c model.Category) string {
	if b, ok := categoryBriefs[c]; ok {
		return b
	}
	return defaultBrief
}

// buildPrompt renders the user message for a place.
func buildPrompt(d *model.PlaceDetail, category model.Category) string {
	var b strings.Builder
	b.WriteString(briefFor(category))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Name: %s\n", d.Name)
	if d.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", d.Address)
	}
	if d.Neighborhood != "" {
		fmt.Fprintf(&b, "Neighborhood: %s\n", d.Neighborhood)
	}
	if d.EditorialSummary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", d.EditorialSummary)
	}
	if d.Website != "" {
		fmt.Fprintf(&b, "Website: %s\n", d.Website)
	}
	if d.Rating > 0 {
		fmt.Fprintf(&b, "Rating context (do not mention): %.1f from %d ratings\n", d.Rating, d.RatingCount)
	}

	reviews := d.Reviews
	if len(reviews) > maxReviews {
		reviews = reviews[:maxReviews]
	}
	if len(reviews) > 0 {
		b.WriteString("\nVisitor impressions (for background only, do not quote or mention):\n")
		for _, r := range reviews {
			fmt.Fprintf(&b, "- %s\n", truncate(strings.TrimSpace(r), maxReviewChars))
		}
	}

	b.WriteString("\n")
	b.WriteString(outputInstructions)
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
