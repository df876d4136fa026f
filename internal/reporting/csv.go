package reporting

import (
	"fmt"
	"strings"
)

// RenderDistributionCSV renders the score distribution as CSV string.
func RenderDistributionCSV(rows []BucketRow) string {
	var sb strings.Builder
	sb.WriteString("low,high,wallets\n")
	for _, b := range rows {
		sb.WriteString(fmt.Sprintf("%d,%d,%d\n", b.Low, b.High, b.Count))
	}
	return sb.String()
}
