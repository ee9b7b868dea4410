package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var (
	pushName    string
	pushDomain  string
	pushLocale  string
	pushSubject string
	pushSender  string
	pushAssets  []string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push templates and assets to the server",
}

var pushTemplateCmd = &cobra.Command{
	Use:   "template <file.liquid>",
	Short: "Register or update a message template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		name := pushName
		if name == "" {
			name = strings.TrimSuffix(strings.TrimSuffix(args[0], ".liquid"), ".html")
		}

		var tpl struct {
			Slug     string `json:"slug"`
			Filename string `json:"filename"`
		}
		err = postJSON("/v1/tx/template", map[string]interface{}{
			"name":    name,
			"domain":  pushDomain,
			"locale":  pushLocale,
			"subject": pushSubject,
			"sender":  pushSender,
			"body":    string(body),
			"assets":  pushAssets,
		}, &tpl)
		if err != nil {
			return err
		}

		log.Info("template pushed", "slug", tpl.Slug, "filename", tpl.Filename)
		return nil
	},
}

var pushAssetCmd = &cobra.Command{
	Use:   "asset <files...>",
	Short: "Upload asset files for a domain",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pushDomain == "" {
			return fmt.Errorf("--domain is required")
		}

		var resp struct {
			Assets []struct {
				Name  string `json:"name"`
				Size  int64  `json:"size"`
				Image *struct {
					Format string `json:"format"`
					Width  int    `json:"width"`
					Height int    `json:"height"`
				} `json:"image"`
			} `json:"assets"`
		}
		if err := postFiles("/v1/asset/"+pushDomain, args, &resp); err != nil {
			return err
		}

		for _, a := range resp.Assets {
			if a.Image != nil {
				log.Info("asset uploaded", "name", a.Name, "size", a.Size,
					"image", fmt.Sprintf("%s %dx%d", a.Image.Format, a.Image.Width, a.Image.Height))
			} else {
				log.Info("asset uploaded", "name", a.Name, "size", a.Size)
			}
		}
		return nil
	},
}

func init() {
	pushCmd.PersistentFlags().StringVarP(&pushDomain, "domain", "d", "", "target domain (default: account default)")

	pushTemplateCmd.Flags().StringVarP(&pushName, "name", "n", "", "template name (default: file basename)")
	pushTemplateCmd.Flags().StringVarP(&pushLocale, "locale", "l", "", "template locale (default: domain locale)")
	pushTemplateCmd.Flags().StringVar(&pushSubject, "subject", "", "subject line template")
	pushTemplateCmd.Flags().StringVar(&pushSender, "sender", "", "sender address override")
	pushTemplateCmd.Flags().StringSliceVar(&pushAssets, "assets", nil, "asset names referenced by the template")

	pushCmd.AddCommand(pushTemplateCmd)
	pushCmd.AddCommand(pushAssetCmd)
}
