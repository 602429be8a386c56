package checkout

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrSignatureHeader   = errors.New("malformed signature header")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrSignatureExpired  = errors.New("signature timestamp outside tolerance")
)

// Sign produces the v1 signature for payload at ts.
func Sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader builds "t=<unix>,v1=<hex>".
func SignatureHeader(payload []byte, secret string, ts time.Time) string {
	return "t=" + strconv.FormatInt(ts.Unix(), 10) + ",v1=" + Sign(payload, secret, ts)
}

// VerifySignature checks a "t=<unix>,v1=<hex>[,v1=...]" header. Any v1 entry
// may match, which allows secret rotation. tolerance <= 0 skips the age check.
func VerifySignature(payload []byte, header, secret string, now time.Time, tolerance time.Duration) error {
	var ts int64
	var haveTS bool
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrSignatureHeader
			}
			ts, haveTS = n, true
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if !haveTS || len(sigs) == 0 {
		return ErrSignatureHeader
	}

	signedAt := time.Unix(ts, 0)
	if tolerance > 0 {
		age := now.Sub(signedAt)
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}

	want, _ := hex.DecodeString(Sign(payload, secret, signedAt))
	for _, s := range sigs {
		got, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(got, want) {
			return nil
		}
	}
	return ErrSignatureMismatch
}
