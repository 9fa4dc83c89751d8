// Package site はストアごとの抽出設定と商品ページの在庫判定を提供する。
// サイト設定はJSONのサイトマップとして埋め込まれ、起動時に1回だけ読み込む。
package site

import (
	"fmt"
	"net/url"
	"strings"
)

// Config は1ストア分の抽出設定を表す。
// Registryのロード後はイミュータブルとして扱い、複数goroutineから共有される。
type Config struct {
	SiteKey              string            `json:"site_key"`
	Name                 string            `json:"name"`
	BaseURL              string            `json:"base_url"`
	Domains              []string          `json:"domains"`
	RequiresRendering    bool              `json:"requires_rendering"`
	StockSelector        string            `json:"stock_selector"`
	OutOfStockIndicators []string          `json:"out_of_stock_indicators"`
	NameSelector         string            `json:"name_selector,omitempty"`
	RequestHeaders       map[string]string `json:"request_headers,omitempty"`
}

// Validate は設定エントリの整合性を検証する。
// 不正なエントリが1つでもあればRegistryのロードは失敗し、プロセスは起動しない。
func (c *Config) Validate() error {
	if c.SiteKey == "" {
		return fmt.Errorf("site_key is required")
	}
	if c.StockSelector == "" {
		return fmt.Errorf("site %s: stock_selector is required", c.SiteKey)
	}
	if len(c.OutOfStockIndicators) == 0 {
		return fmt.Errorf("site %s: out_of_stock_indicators must not be empty", c.SiteKey)
	}
	if c.BaseURL != "" {
		parsed, err := url.Parse(c.BaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("site %s: invalid base_url: %s", c.SiteKey, c.BaseURL)
		}
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("site %s: domains must not be empty", c.SiteKey)
	}
	for _, d := range c.Domains {
		if d == "" || strings.ContainsAny(d, "/: ") {
			return fmt.Errorf("site %s: invalid domain entry: %q", c.SiteKey, d)
		}
	}
	return nil
}

// MatchesHost はURLのホストがこのサイトのドメインに属するかを判定する。
// サブドメイン（www.example.com など）も一致とみなす。
func (c *Config) MatchesHost(host string) bool {
	host = strings.ToLower(host)
	for _, d := range c.Domains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
