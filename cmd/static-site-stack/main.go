package main

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi/config"

	provider "github.com/mikecbrant/secure-static-site/internal/pulumi"
	"github.com/mikecbrant/secure-static-site/internal/site"
)

func main() {
	pulumi.Run(func(ctx *pulumi.Context) error {
		conf := config.New(ctx, "")
		path := conf.Get("siteConfig")
		if path == "" {
			path = "site.yaml"
		}
		cfg, err := site.Load(path)
		if err != nil {
			return err
		}
		_, err = provider.NewStaticSite(ctx, "site", provider.ArgsFromConfig(cfg))
		return err
	})
}
