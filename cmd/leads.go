package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"leadwatch/internal/logger"
	"leadwatch/internal/store"
	"leadwatch/internal/util"
)

const (
	PromptDismiss = "Dismiss"
	PromptDetails = "Show full post"
	PromptBack    = "back"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Review collected leads and dismiss the ones that are not interesting",
	Run: func(cmd *cobra.Command, _ []string) {
		reviewLeads(cmd)
	},
}

func init() {
	rootCmd.AddCommand(leadsCmd)

	leadsCmd.Flags().BoolP("all", "a", false, "include dismissed leads")
	leadsCmd.Flags().IntP("limit", "n", 50, "maximum number of leads to show")
}

func reviewLeads(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	leads, err := store.Open(databasePath(config), logger)
	if err != nil {
		logger.Fatal("opening the lead store", zap.Error(err))
	}
	defer leads.Close()

	includeDismissed, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

	for {
		list, err := leads.List(ctx, store.Filters{
			IncludeDismissed: includeDismissed,
			Limit:            limit,
		})
		if err != nil {
			logger.Fatal("listing leads", zap.Error(err))
		}

		if len(list) == 0 {
			logger.Info("exiting", zap.String("reason", "no leads to review"))
			return
		}

		items := make([]string, 0, len(list)+1)
		for _, lead := range list {
			items = append(items, leadLabel(lead))
		}

		leadPrompt := promptui.Select{
			Label: "Choose a lead and press ENTER",
			Items: append(items, PromptBack),
			Size:  10,
		}

		idx, selected, err := leadPrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if selected == PromptBack {
			return
		}

		if err := handleLead(ctx, leads, list[idx], logger); err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleLead(ctx context.Context, leads *store.Store, lead *store.Lead, logger *zap.Logger) error {
	actionPrompt := promptui.Select{
		Label: fmt.Sprintf("%s / %s", lead.AuthorName, lead.PostURL),
		Items: []string{PromptDetails, PromptDismiss, PromptBack},
	}

	_, action, err := actionPrompt.Run()
	if err != nil {
		return err
	}

	switch action {
	case PromptBack:
		return nil
	case PromptDetails:
		fmt.Println(leadDetails(lead))
		return nil
	case PromptDismiss:
		found, err := leads.Dismiss(ctx, lead.Identity)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("there is no such lead %s", lead.Identity)
		}
		logger.Info("lead dismissed", zap.String("author", lead.AuthorName))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func leadLabel(lead *store.Lead) string {
	company := lead.Company
	if company == "" {
		company = "unknown company"
	}

	marker := ""
	if lead.Dismissed {
		marker = " [dismissed]"
	}

	return fmt.Sprintf("%s / %s / %s%s",
		lead.AuthorName, company, util.RelativeTime(lead.DiscoveredAt, time.Now().UTC()), marker,
	)
}

func leadDetails(lead *store.Lead) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\nAuthor:   %s (%s)\n", lead.AuthorName, lead.AuthorTitle)
	fmt.Fprintf(&b, "Company:  %s\n", lead.Company)
	fmt.Fprintf(&b, "URL:      %s\n", lead.PostURL)
	if lead.BudgetMention != "" {
		fmt.Fprintf(&b, "Budget:   %s\n", lead.BudgetMention)
	}
	if len(lead.MatchedKeywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(lead.MatchedKeywords, ", "))
	}
	fmt.Fprintf(&b, "Reason:   %s\n\n%s\n", lead.Rationale, lead.Content)

	return b.String()
}
