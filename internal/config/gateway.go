package config

import (
	"encoding/hex"
	"errors"
	"time"
)

// GatewayConfig holds the PeriPay merchant credentials. The key and IV are
// provisioned by the gateway out of band and are fixed for the lifetime of
// the merchant account; they are never derived or rotated at runtime.
type GatewayConfig struct {
	BaseURL    string        `yaml:"base_url"`
	MerchantNo string        `yaml:"merchant_no"`
	KeyHex     string        `yaml:"key_hex"`
	IVHex      string        `yaml:"iv_hex"`
	NotifyURL  string        `yaml:"notify_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

func (c *GatewayConfig) Validate() error {
	if c.MerchantNo == "" {
		return errors.New("merchant_no is required")
	}
	key, err := hex.DecodeString(c.KeyHex)
	if err != nil {
		return errors.New("key_hex is not valid hex")
	}
	if len(key) != 32 {
		return errors.New("key_hex must decode to 32 bytes")
	}
	iv, err := hex.DecodeString(c.IVHex)
	if err != nil {
		return errors.New("iv_hex is not valid hex")
	}
	if len(iv) != 16 {
		return errors.New("iv_hex must decode to 16 bytes")
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return nil
}

// Key returns the decoded 32-byte cipher key. Validate must have passed.
func (c *GatewayConfig) Key() []byte {
	key, _ := hex.DecodeString(c.KeyHex)
	return key
}

// IV returns the decoded 16-byte initialization vector.
func (c *GatewayConfig) IV() []byte {
	iv, _ := hex.DecodeString(c.IVHex)
	return iv
}
