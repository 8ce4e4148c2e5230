package debts

import (
	"strings"

	"github.com/ttacon/libphonenumber"

	"github.com/warp/retail-ledger/ledger"
)

// NormalizePhone parses raw in region (ISO 3166 code, used when raw has no
// +country prefix) and returns it in E.164 form.
func NormalizePhone(raw, region string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	num, err := libphonenumber.Parse(raw, strings.ToUpper(region))
	if err != nil {
		return "", ledger.Invalid("phone %q: %v", raw, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", ledger.Invalid("phone %q is not a valid number", raw)
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}
