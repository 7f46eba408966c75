package settlement

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// ContentHash returns the hex SHA-256 of a raw uploaded file. Used to reject
// re-uploads of the same report/export pair.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LineFingerprint derives the dedup hash of a settlement line. Two imports
// of the same report produce identical fingerprints, so repeated rows are
// dropped by the unique index.
func LineFingerprint(cardBrand string, line *Line) string {
	return fieldHash(
		cardBrand,
		line.OpDate,
		line.Last4,
		strconv.FormatInt(line.AmountCents, 10),
		line.Cupon,
		line.Terminal,
		line.Lote,
		string(line.Type),
		line.PlanCuota,
	)
}

// TransactionFingerprint derives the dedup hash of a CSV transaction row.
func TransactionFingerprint(cardBrand string, tx *Transaction) string {
	return fieldHash(
		cardBrand,
		tx.OpDate,
		tx.Last4,
		strconv.FormatInt(tx.AmountCents, 10),
		tx.TransactionID,
		tx.OrderID,
		tx.Cupon,
	)
}

func fieldHash(fields ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}
