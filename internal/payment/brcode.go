package payment

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EMV merchant-presented QR field ids used by PIX.
const (
	idPayloadFormat   = "00"
	idMerchantAccount = "26"
	idMerchantGUI     = "00"
	idMerchantKey     = "01"
	idCategoryCode    = "52"
	idCurrency        = "53"
	idAmount          = "54"
	idCountry         = "58"
	idMerchantName    = "59"
	idMerchantCity    = "60"
	idAdditionalData  = "62"
	idTxID            = "05"
	idCRC             = "63"

	pixGUI      = "BR.GOV.BCB.PIX"
	currencyBRL = "986"
)

func field(id, value string) string {
	return fmt.Sprintf("%s%02d%s", id, len(value), value)
}

// BuildPayload renders the static BR Code payload including its CRC.
// Name and city are folded to ASCII and truncated to their field limits; an empty txid becomes "***".
func BuildPayload(key, name, city, txid string, amount decimal.Decimal) string {
	if txid == "" {
		txid = "***"
	}
	var b strings.Builder
	b.WriteString(field(idPayloadFormat, "01"))
	b.WriteString(field(idMerchantAccount, field(idMerchantGUI, pixGUI)+field(idMerchantKey, key)))
	b.WriteString(field(idCategoryCode, "0000"))
	b.WriteString(field(idCurrency, currencyBRL))
	b.WriteString(field(idAmount, amount.StringFixed(2)))
	b.WriteString(field(idCountry, "BR"))
	b.WriteString(field(idMerchantName, truncate(name, MaxNameLen)))
	b.WriteString(field(idMerchantCity, truncate(city, MaxCityLen)))
	b.WriteString(field(idAdditionalData, field(idTxID, TruncateTransactionID(txid))))
	b.WriteString(idCRC + "04")
	return b.String() + fmt.Sprintf("%04X", crc16CCITT([]byte(b.String())))
}

// crc16CCITT is CRC-16/CCITT-FALSE (poly 0x1021, init 0xFFFF), as required by BR Code.
func crc16CCITT(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, c := range data {
		crc ^= uint16(c) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
