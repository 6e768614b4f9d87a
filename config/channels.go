package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed channels.yaml
var defaultChannelsYAML []byte

var ErrUnknownChannel = errors.New("unknown channel")

type RuleAction string

const (
	RuleActionAllocate              RuleAction = "allocate"
	RuleActionAllocateFuzzyQuantity RuleAction = "allocate_fuzzy_quantity"
	RuleActionCrossReference        RuleAction = "cross_reference"
	RuleActionExclude               RuleAction = "exclude"
	RuleActionRefund                RuleAction = "refund"
	RuleActionCancelGroup           RuleAction = "cancel_group"
)

type MatchMode string

const (
	MatchModeExact    MatchMode = "exact"
	MatchModeContains MatchMode = "contains"
)

// ClassificationRule maps a transaction type label to an action.
type ClassificationRule struct {
	Label  string     `yaml:"label" validate:"required"`
	Match  MatchMode  `yaml:"match" validate:"omitempty,oneof=exact contains"`
	Action RuleAction `yaml:"action" validate:"required,oneof=allocate allocate_fuzzy_quantity cross_reference exclude refund cancel_group"`
	// SingleUnit allocates exactly one unit regardless of the quantity column.
	SingleUnit bool `yaml:"single_unit"`
	// ExcludeIfDescriptionContains turns the row into an exclusion when the description contains the text.
	ExcludeIfDescriptionContains string `yaml:"exclude_if_description_contains"`
}

func (r ClassificationRule) matches(label string) bool {
	if r.Match == MatchModeContains {
		return strings.Contains(label, r.Label)
	}
	return label == r.Label
}

type TransactionColumns struct {
	Status        string   `yaml:"status" validate:"required,column"`
	LedgerRefs    string   `yaml:"ledger_refs" validate:"required,column"`
	LedgerLink    string   `yaml:"ledger_link" validate:"omitempty,column"`
	ProcessedDate string   `yaml:"processed_date" validate:"required,column"`
	TransferDate  string   `yaml:"transfer_date" validate:"omitempty,column"`
	Type          string   `yaml:"type" validate:"required,column"`
	TradeStatus   string   `yaml:"trade_status" validate:"omitempty,column"`
	Sku           string   `yaml:"sku" validate:"required,column"`
	OrderNumber   string   `yaml:"order_number" validate:"omitempty,column"`
	Quantity      string   `yaml:"quantity" validate:"omitempty,column"`
	QuantityText  string   `yaml:"quantity_text" validate:"omitempty,column"`
	Description   string   `yaml:"description" validate:"omitempty,column"`
	GroupKey      string   `yaml:"group_key" validate:"omitempty,column"`
	SaleDate      string   `yaml:"sale_date" validate:"omitempty,column"`
	SalePrice     []string `yaml:"sale_price" validate:"dive,column"`
	Deposit       string   `yaml:"deposit" validate:"omitempty,column"`
	ShippingFee   string   `yaml:"shipping_fee" validate:"omitempty,column"`
}

// OutcomeLabels is the status-cell text written for each terminal outcome.
type OutcomeLabels struct {
	Allocated      string `yaml:"allocated" validate:"required"`
	Excluded       string `yaml:"excluded" validate:"required"`
	Refunded       string `yaml:"refunded" validate:"required"`
	CrossReference string `yaml:"cross_reference" validate:"required"`
}

type ChannelConfig struct {
	Name                  string               `yaml:"-"`
	Sheet                 string               `yaml:"sheet" validate:"required"`
	DataStartRow          int                  `yaml:"data_start_row" validate:"min=1"`
	Columns               TransactionColumns   `yaml:"columns"`
	Rules                 []ClassificationRule `yaml:"rules" validate:"dive"`
	DefaultAction         RuleAction           `yaml:"default_action" validate:"omitempty,oneof=allocate allocate_fuzzy_quantity cross_reference exclude refund cancel_group"`
	ExcludeWhenSkuMissing bool                 `yaml:"exclude_when_sku_missing"`
	QuantityUnits         []string             `yaml:"quantity_units"`
	AmountPrecision       int32                `yaml:"amount_precision" validate:"min=0,max=4"`
	Labels                OutcomeLabels        `yaml:"labels"`
	// trade statuses that reverse a sale or drop the row during the transfer step
	TransferRefundStatuses  []string `yaml:"transfer_refund_statuses"`
	TransferExcludeStatuses []string `yaml:"transfer_exclude_statuses"`
}

// MatchRule returns the first exact rule for label, then the first contains rule.
func (c ChannelConfig) MatchRule(label string) (ClassificationRule, bool) {
	label = strings.TrimSpace(label)
	for _, r := range c.Rules {
		if r.Match != MatchModeContains && r.matches(label) {
			return r, true
		}
	}
	for _, r := range c.Rules {
		if r.Match == MatchModeContains && r.matches(label) {
			return r, true
		}
	}
	return ClassificationRule{}, false
}

type LedgerColumns struct {
	Sku            string `yaml:"sku" validate:"required,column"`
	Name           string `yaml:"name" validate:"omitempty,column"`
	Received       string `yaml:"received" validate:"required,column"`
	OnSale         string `yaml:"on_sale" validate:"required,column"`
	SoldOrDisposed string `yaml:"sold_or_disposed" validate:"required,column"`
	OrderNumber    string `yaml:"order_number" validate:"omitempty,column"`
	SaleDate       string `yaml:"sale_date" validate:"omitempty,column"`
	SalePrice      string `yaml:"sale_price" validate:"omitempty,column"`
	Deposit        string `yaml:"deposit" validate:"omitempty,column"`
	ShippingFee    string `yaml:"shipping_fee" validate:"omitempty,column"`
}

type LedgerLayout struct {
	Sheet        string        `yaml:"sheet" validate:"required"`
	DataStartRow int           `yaml:"data_start_row" validate:"min=1"`
	Columns      LedgerColumns `yaml:"columns"`
}

type FbaInventoryLayout struct {
	Sheet        string `yaml:"sheet"`
	DataStartRow int    `yaml:"data_start_row" validate:"omitempty,min=1"`
	Sku          string `yaml:"sku" validate:"omitempty,column"`
	Count        string `yaml:"count" validate:"omitempty,column"`
	Result       string `yaml:"result" validate:"omitempty,column"`
	Message      string `yaml:"message" validate:"omitempty,column"`
}

type Config struct {
	Timezone     string                   `yaml:"timezone"`
	DateFormat   string                   `yaml:"date_format"`
	Ledger       LedgerLayout             `yaml:"ledger"`
	FbaInventory FbaInventoryLayout       `yaml:"fba_inventory"`
	Channels     map[string]ChannelConfig `yaml:"channels" validate:"required,min=1,dive"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// A column is either a spreadsheet letter ("AF") or a header name in brackets ("[注文番号]").
var columnPattern = regexp.MustCompile(`^([A-Z]{1,3}|\[[^\]]+\])$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("column", func(fl validator.FieldLevel) bool {
		return columnPattern.MatchString(fl.Field().String())
	})
	return v
}

// LoadConfig loads channel configuration from a YAML file with environment variable expansion.
// An empty filename loads the built-in Amazon/Mercari defaults.
func LoadConfig(filename string) (*Config, error) {
	data := defaultChannelsYAML
	if filename != "" {
		var err error
		data, err = os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return ParseConfig(data)
}

func DefaultConfig() (*Config, error) {
	return ParseConfig(defaultChannelsYAML)
}

func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Tokyo"
	}
	if tz := strings.TrimSpace(os.Getenv("RECON_TIMEZONE")); tz != "" {
		c.Timezone = tz
	}
	if c.DateFormat == "" {
		c.DateFormat = "2006/01/02"
	}
	if c.Ledger.DataStartRow == 0 {
		c.Ledger.DataStartRow = 3
	}
	if c.FbaInventory.DataStartRow == 0 {
		c.FbaInventory.DataStartRow = 2
	}
	for name, ch := range c.Channels {
		ch.Name = name
		if ch.DataStartRow == 0 {
			ch.DataStartRow = 3
		}
		for i := range ch.Rules {
			if ch.Rules[i].Match == "" {
				ch.Rules[i].Match = MatchModeExact
			}
		}
		if len(ch.QuantityUnits) == 0 {
			ch.QuantityUnits = []string{"個", "つ"}
		}
		c.Channels[name] = ch
	}
}

// Validate checks struct tags and the parts tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ValidationError{
				Field:   fe.Namespace(),
				Value:   fe.Value(),
				Message: "failed on the '" + fe.Tag() + "' rule",
			}
		}
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return ValidationError{Field: "timezone", Value: c.Timezone, Message: err.Error()}
	}
	for name, ch := range c.Channels {
		seen := map[string]bool{}
		for _, r := range ch.Rules {
			key := string(r.Match) + "|" + r.Label
			if seen[key] {
				return ValidationError{
					Field:   "channels." + name + ".rules",
					Value:   r.Label,
					Message: "duplicate rule label",
				}
			}
			seen[key] = true
		}
	}
	return nil
}

func (c *Config) Channel(name string) (ChannelConfig, error) {
	ch, ok := c.Channels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return ChannelConfig{}, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
	return ch, nil
}

func (c *Config) ChannelNames() []string {
	names := make([]string, 0, len(c.Channels))
	for name := range c.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
