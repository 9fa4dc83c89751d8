package site

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
)

//go:embed sites.json
var defaultSitesFS embed.FS

// Registry はsiteKeyからConfigを引くためのレジストリ。
// ロード後はイミュータブルで、ロックなしで複数goroutineから参照できる。
type Registry struct {
	configs map[string]*Config
}

// LoadRegistry はサイトマップJSONからRegistryを構築する。
// pathが空の場合は埋め込みのデフォルトサイトマップを使用する。
// いずれかのエントリの検証に失敗した場合はエラーを返す（プロセスは起動しない）。
func LoadRegistry(path string) (*Registry, error) {
	var data []byte
	var err error

	if path == "" {
		data, err = defaultSitesFS.ReadFile("sites.json")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("サイトマップの読み込みに失敗しました: %w", err)
	}

	return ParseRegistry(data)
}

// ParseRegistry はサイトマップJSONをパースしてRegistryを構築する。
func ParseRegistry(data []byte) (*Registry, error) {
	var entries []*Config
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("サイトマップのパースに失敗しました: %w", err)
	}

	configs := make(map[string]*Config, len(entries))
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("サイト設定が不正です: %w", err)
		}
		if _, exists := configs[entry.SiteKey]; exists {
			return nil, fmt.Errorf("サイト設定が不正です: duplicate site_key: %s", entry.SiteKey)
		}
		configs[entry.SiteKey] = entry
	}

	return &Registry{configs: configs}, nil
}

// Get は指定siteKeyのConfigを返す。未知のsiteKeyの場合はnilを返す。
func (r *Registry) Get(siteKey string) *Config {
	return r.configs[siteKey]
}

// ResolveURL はURLのホストからサイトを解決する。
// どのサイトのドメインにも属さない場合はnilを返す。
func (r *Registry) ResolveURL(rawURL string) *Config {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	host := parsed.Hostname()
	if host == "" {
		return nil
	}
	for _, key := range r.Keys() {
		if cfg := r.configs[key]; cfg.MatchesHost(host) {
			return cfg
		}
	}
	return nil
}

// Keys は登録済みのsiteKeyをソート順で返す。
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.configs))
	for k := range r.configs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// All は登録済みの全Configをsitekey順で返す。
func (r *Registry) All() []*Config {
	configs := make([]*Config, 0, len(r.configs))
	for _, k := range r.Keys() {
		configs = append(configs, r.configs[k])
	}
	return configs
}
