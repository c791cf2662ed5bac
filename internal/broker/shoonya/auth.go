package shoonya

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

type loginRequest struct {
	Source     string `json:"source"`
	APKVersion string `json:"apkversion"`
	UID        string `json:"uid"`
	Pwd        string `json:"pwd"`
	Factor2    string `json:"factor2"`
	VC         string `json:"vc"`
	AppKey     string `json:"appkey"`
	IMEI       string `json:"imei"`
}

type loginResponse struct {
	Stat       string `json:"stat"`
	EMsg       string `json:"emsg"`
	UserToken  string `json:"susertoken"`
	AccountID  string `json:"actid"`
	UserName   string `json:"uname"`
	LastAccess string `json:"lastaccesstime"`
}

func sha256hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Login authenticates the session. The password goes over hashed, the app
// key is the hash of "uid|apikey" and the second factor is a fresh TOTP
// code derived from the configured secret.
func (c *Client) Login(ctx context.Context) error {
	code, err := totp.GenerateCode(c.p.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("generate totp: %w", err)
	}

	req := loginRequest{
		Source:     "API",
		APKVersion: "1.0.0",
		UID:        c.p.UserID,
		Pwd:        sha256hex(c.p.Password),
		Factor2:    code,
		VC:         c.p.VendorCode,
		AppKey:     sha256hex(c.p.UserID + "|" + c.p.APIKey),
		IMEI:       c.p.IMEI,
	}

	var resp loginResponse
	if err := c.post(ctx, "QuickAuth", req, false, &resp); err != nil {
		return err
	}
	if resp.Stat != statOK || resp.UserToken == "" {
		return fmt.Errorf("login rejected: %s", resp.EMsg)
	}
	c.token = resp.UserToken

	if c.ticker != nil {
		if err := c.ticker.Start(ctx, c.token); err != nil {
			return fmt.Errorf("start live feed: %w", err)
		}
	}
	return nil
}

// Logout invalidates the session token.
func (c *Client) Logout(ctx context.Context) error {
	if c.token == "" {
		return nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
	}
	var resp struct {
		Stat string `json:"stat"`
		EMsg string `json:"emsg"`
	}
	if err := c.post(ctx, "Logout", map[string]string{"ord_source": "API", "uid": c.p.UserID}, true, &resp); err != nil {
		return err
	}
	c.token = ""
	if resp.Stat != statOK {
		return fmt.Errorf("logout rejected: %s", resp.EMsg)
	}
	return nil
}
