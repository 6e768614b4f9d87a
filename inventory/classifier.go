package inventory

import (
	"strings"

	"github.com/mmdatafocus/sales_recon/config"
	"github.com/mmdatafocus/sales_recon/models"
)

// Action is what a run should do with one transaction row.
type Action interface {
	isAction()
}

type AllocateBySku struct {
	Sku      string
	Quantity int
}

type AllocateBySkuFuzzyQuantity struct {
	Sku          string
	QuantityText string
}

type CrossReferenceOrderNumber struct {
	OrderNumber string
}

type MarkExcluded struct {
	Reason string
}

type MarkRefunded struct {
	OrderNumber string
}

// CancelGroup excludes the row and every unprocessed row sharing its group key.
type CancelGroup struct {
	GroupKey string
}

type Unclassified struct {
	Label string
}

func (AllocateBySku) isAction()              {}
func (AllocateBySkuFuzzyQuantity) isAction() {}
func (CrossReferenceOrderNumber) isAction()  {}
func (MarkExcluded) isAction()               {}
func (MarkRefunded) isAction()               {}
func (CancelGroup) isAction()                {}
func (Unclassified) isAction()               {}

type Classifier interface {
	Classify(tx models.TransactionRow) Action
}

// RuleClassifier classifies rows with a channel's label table.
type RuleClassifier struct {
	channel config.ChannelConfig
}

func NewRuleClassifier(channel config.ChannelConfig) *RuleClassifier {
	return &RuleClassifier{channel: channel}
}

func (c *RuleClassifier) Classify(tx models.TransactionRow) Action {
	label := strings.TrimSpace(tx.Type)

	rule, ok := c.channel.MatchRule(label)
	if !ok {
		if c.channel.DefaultAction == "" {
			return Unclassified{Label: label}
		}
		rule = config.ClassificationRule{Label: label, Action: c.channel.DefaultAction}
	}

	if rule.ExcludeIfDescriptionContains != "" && strings.Contains(tx.Description, rule.ExcludeIfDescriptionContains) {
		return MarkExcluded{Reason: rule.ExcludeIfDescriptionContains}
	}

	sku := strings.TrimSpace(tx.Sku)
	switch rule.Action {
	case config.RuleActionAllocate:
		if sku == "" && c.channel.ExcludeWhenSkuMissing {
			return MarkExcluded{Reason: "sku missing"}
		}
		quantity := tx.Quantity
		if rule.SingleUnit {
			quantity = 1
		}
		return AllocateBySku{Sku: sku, Quantity: quantity}
	case config.RuleActionAllocateFuzzyQuantity:
		if sku == "" && c.channel.ExcludeWhenSkuMissing {
			return MarkExcluded{Reason: "sku missing"}
		}
		return AllocateBySkuFuzzyQuantity{Sku: sku, QuantityText: tx.QuantityText}
	case config.RuleActionCrossReference:
		return CrossReferenceOrderNumber{OrderNumber: strings.TrimSpace(tx.OrderNumber)}
	case config.RuleActionExclude:
		return MarkExcluded{Reason: label}
	case config.RuleActionRefund:
		return MarkRefunded{OrderNumber: strings.TrimSpace(tx.OrderNumber)}
	case config.RuleActionCancelGroup:
		return CancelGroup{GroupKey: strings.TrimSpace(tx.GroupKey)}
	}
	return Unclassified{Label: label}
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(tx models.TransactionRow) Action

func (f ClassifierFunc) Classify(tx models.TransactionRow) Action {
	return f(tx)
}
