package invoice

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"time"

	"ms-parking/internal/models"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// Receipt is what the printed QR carries, encrypted.
type Receipt struct {
	InvoiceNumber string          `json:"invoice_number"`
	PlateNumber   string          `json:"plate"`
	Total         decimal.Decimal `json:"total"`
	PaidAt        time.Time       `json:"paid_at"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// Payload returns the encrypted, URL-safe receipt string encoded in the QR.
func (q *QRGenerator) Payload(inv *models.Invoice) (string, error) {
	data, err := json.Marshal(Receipt{
		InvoiceNumber: inv.InvoiceNumber,
		PlateNumber:   inv.PlateNumber,
		Total:         inv.TotalAmount,
		PaidAt:        inv.CheckOutTime,
	})
	if err != nil {
		return "", err
	}
	return q.seal(data)
}

// GenerateReceiptQR renders the encrypted receipt as a 256px PNG.
func (q *QRGenerator) GenerateReceiptQR(inv *models.Invoice) ([]byte, error) {
	encrypted, err := q.Payload(inv)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecryptReceipt reverses Payload for receipts presented back at a gate. Any
// altered byte fails authentication.
func (q *QRGenerator) DecryptReceipt(encoded string) (*Receipt, error) {
	raw, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, models.InvalidInput("receipt is not valid base64")
	}

	gcm, err := q.aead()
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize()+gcm.Overhead() {
		return nil, models.InvalidInput("receipt is too short")
	}
	nonce, sealed := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, models.InvalidInput("receipt failed verification")
	}

	var r Receipt
	if err := json.Unmarshal(plain, &r); err != nil || r.InvoiceNumber == "" {
		return nil, models.InvalidInput("receipt payload is malformed")
	}
	return &r, nil
}

func (q *QRGenerator) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// seal prefixes the random nonce to the AES-GCM ciphertext.
func (q *QRGenerator) seal(data []byte) (string, error) {
	gcm, err := q.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Join(errors.New("read nonce"), err)
	}

	return base64.URLEncoding.EncodeToString(gcm.Seal(nonce, nonce, data, nil)), nil
}
