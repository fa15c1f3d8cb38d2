// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/cts-structure/internal/cts"
	"github.com/pdiddy/cts-structure/internal/knowledge"
	"github.com/pdiddy/cts-structure/internal/objectstore"
	"github.com/pdiddy/cts-structure/internal/secrets"
	"github.com/pdiddy/cts-structure/internal/structure"
	"github.com/pdiddy/cts-structure/pkg/types"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultUserAgent    = "cts-structure/0.1"
	defaultOutputDir    = "data/text_structures"
	defaultEndpointHelp = cts.DefaultEndpoint
)

// envKeyReplacer maps nested keys such as publish.bucket to
// CTS_STRUCTURE_PUBLISH_BUCKET.
var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

func resolverConfig() types.ResolverConfig {
	timeout := viper.GetDuration("timeout")
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := viper.GetString("user_agent")
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return types.ResolverConfig{
		HTTPConfig: types.HTTPConfig{
			Timeout:    timeout,
			UserAgent:  userAgent,
			MaxRetries: viper.GetInt("max_retries"),
		},
		Endpoint:  viper.GetString("endpoint"),
		APIToken:  loadedSecrets.Get(secrets.CTSAPIToken, viper.GetString("api_token")),
		CacheSize: viper.GetInt("cache_size"),
	}
}

// newFetcher builds a CTS client and a fetcher that reports to stdout.
func newFetcher() (*structure.Fetcher, error) {
	cfg := resolverConfig()
	client, err := cts.NewClient(&http.Client{Timeout: cfg.Timeout}, cfg)
	if err != nil {
		return nil, err
	}
	return structure.NewFetcher(client, os.Stdout), nil
}

func knowledgeConfig() types.KnowledgeBaseConfig {
	dir := viper.GetString("knowledge_dir")
	if dir == "" {
		dir = "knowledge"
	}
	return types.KnowledgeBaseConfig{
		KnowledgeDir: dir,
		Driver:       viper.GetString("driver"),
		DSN:          viper.GetString("dsn"),
	}
}

func openStore() (*knowledge.Store, error) {
	return knowledge.NewStore(knowledgeConfig())
}

func publishConfig() types.PublishConfig {
	return types.PublishConfig{
		Endpoint:  viper.GetString("publish.endpoint"),
		Region:    viper.GetString("publish.region"),
		AccessKey: loadedSecrets.Get(secrets.S3AccessKey, viper.GetString("publish.access_key")),
		SecretKey: loadedSecrets.Get(secrets.S3SecretKey, viper.GetString("publish.secret_key")),
		Bucket:    viper.GetString("publish.bucket"),
		UseSSL:    viper.GetBool("publish.use_ssl"),
		Prefix:    viper.GetString("publish.prefix"),
	}
}

func newPublisher() (structure.Publisher, error) {
	store, err := objectstore.NewS3Store(publishConfig())
	if err != nil {
		return nil, fmt.Errorf("configuring publish: %w", err)
	}
	return store, nil
}
