package mockapi

import (
	"fmt"
	"strings"

	"github.com/abelbrown/crmdesk/internal/phone"
	"github.com/abelbrown/crmdesk/internal/store"
)

var seedNames = []string{
	"Azul", "Rojo", "Verde", "Mar", "Sol", "Luna", "Palma", "Coral",
	"Brisa", "Arena", "Cielo", "Roca", "Bahía", "Laguna", "Selva", "Río",
}

var seedLadas = []string{"52", "1", "57", "34", "51"}

// Seed fills each resource with n sample records unless it already has rows.
// Statuses cycle through active, inactive, terminated and reopened.
func Seed(s *store.Store, resources []string, n int) (int, error) {
	inserted := 0
	for _, res := range resources {
		count, err := s.CountRecords(res)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", res, err)
		}
		if count > 0 {
			continue
		}
		kind := resourceLabel(res)
		for i := range n {
			name := seedNames[i%len(seedNames)]
			if i >= len(seedNames) {
				name = fmt.Sprintf("%s %d", name, i/len(seedNames)+1)
			}
			lada := seedLadas[i%len(seedLadas)]
			data := map[string]any{
				"name":   kind + " " + name,
				"email":  strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com",
				"phone":  phone.Format(lada, fmt.Sprintf("55%08d", 10000000+i*7919)),
				"status": float64(statusCycle[i%len(statusCycle)]),
			}
			if _, err := s.InsertRecord(res, data); err != nil {
				return inserted, fmt.Errorf("seed %s: %w", res, err)
			}
			inserted++
		}
	}
	return inserted, nil
}

var statusCycle = []int{1, 1, 0, 1, 2, 3}

// resourceLabel turns "catalogs/cancel-reason" into "Cancel Reason".
func resourceLabel(res string) string {
	last := res[strings.LastIndex(res, "/")+1:]
	words := strings.Split(last, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
