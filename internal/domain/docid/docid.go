// Package docid derives the business identifiers carried by PO and GRN rows.
//
// All identifiers are pure functions of their inputs. The only stateful
// input is the GRN sequence, which is supplied through SequenceSource.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Condition type codes used as PO condition id prefixes.
var conditionCodes = map[string]string{
	"IGST":  "JIGG",
	"CGST":  "JICG",
	"SGST":  "JISG",
	"UTGST": "JIUG",
}

func shortHash(n int, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:n]
}

// POID returns "{poNumber}-{hash6}".
func POID(poNumber string) string {
	return fmt.Sprintf("%s-%s", poNumber, shortHash(6, poNumber))
}

// POLineID returns "{poID}-{00010}".
func POLineID(poID string, lineNumber int) string {
	return fmt.Sprintf("%s-%05d", poID, lineNumber)
}

// ConditionCode maps a tax condition type onto its short code.
func ConditionCode(conditionType string) string {
	t := strings.ToUpper(strings.TrimSpace(conditionType))
	if code, ok := conditionCodes[t]; ok {
		return code
	}
	if len(t) > 3 {
		t = t[:3]
	}
	return "J" + t
}

// POConditionID returns "{code}{hash4}". The rate is part of the hash input
// so two conditions of the same type at different rates stay distinct.
func POConditionID(poID, conditionType string, rate decimal.Decimal) string {
	t := strings.ToUpper(strings.TrimSpace(conditionType))
	return ConditionCode(t) + shortHash(4, poID, t, rate.StringFixed(2))
}

// GRNNumber returns "{yy}{ddd}{seq:05d}" for the given receipt time.
func GRNNumber(at time.Time, seq int64) string {
	if seq < 0 {
		seq = -seq
	}
	return fmt.Sprintf("%02d%03d%05d", at.Year()%100, at.YearDay(), seq%100000)
}

// GRNID returns "{grnNumber}{yy}{checksum}" where checksum is the digit sum
// of grnNumber modulo 10.
func GRNID(grnNumber string, at time.Time) string {
	return fmt.Sprintf("%s%02d%d", grnNumber, at.Year()%100, digitSum(grnNumber)%10)
}

func digitSum(s string) int {
	sum := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sum += int(r - '0')
		}
	}
	return sum
}

// GRNLineID returns "{grnID}-{0001}".
func GRNLineID(grnID string, lineNumber int) string {
	return fmt.Sprintf("%s-%04d", grnID, lineNumber)
}

// BatchNumber returns "B{yy}{ddd}{nnn}" where nnn disambiguates lines
// received on the same day by HSN code and line number.
func BatchNumber(at time.Time, hsn string, lineNumber int) string {
	n := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s|%d", hsn, lineNumber))) % 1000
	return fmt.Sprintf("B%02d%03d%03d", at.Year()%100, at.YearDay(), n)
}
