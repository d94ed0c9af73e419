package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/lmsqa/flowrunner/pkg/core"
	"github.com/lmsqa/flowrunner/pkg/flow"
	"github.com/lmsqa/flowrunner/pkg/locator"
)

// ElementCondition is satisfied by an element located through fallback strategies.
// After a satisfied wait, Element holds the element that satisfied it.
type ElementCondition struct {
	Resolver   *locator.Resolver
	Strategies []flow.Strategy
	Scope      core.Element
	Clickable  bool

	Element core.Element
	Result  locator.Result
}

// Present waits for any of strategies to match inside scope.
func Present(r *locator.Resolver, strategies []flow.Strategy, scope core.Element) *ElementCondition {
	return &ElementCondition{Resolver: r, Strategies: strategies, Scope: scope}
}

// ClickableBy waits for the element resolved from strategies to be present, visible and not obscured.
func ClickableBy(r *locator.Resolver, strategies []flow.Strategy, scope core.Element) *ElementCondition {
	return &ElementCondition{Resolver: r, Strategies: strategies, Scope: scope, Clickable: true}
}

// Check resolves the strategies and, for clickable conditions, checks clickability.
func (c *ElementCondition) Check(ctx context.Context, b core.Browser) (bool, error) {
	res := c.Resolver.Resolve(ctx, b, c.Strategies, c.Scope)
	c.Result = res
	if !res.Found {
		return false, res.Err()
	}
	if c.Clickable {
		ok, err := b.IsClickable(ctx, res.Element)
		if err != nil || !ok {
			return false, err
		}
	}
	c.Element = res.Element
	return true, nil
}

// Describe returns a human-readable description.
func (c *ElementCondition) Describe() string {
	kind := "present"
	if c.Clickable {
		kind = "clickable"
	}
	return fmt.Sprintf("%s %s", kind, strings.Join(flow.DescribeAll(c.Strategies), " | "))
}

// Clickable waits for an already located element to become clickable.
func Clickable(el core.Element, name string) Condition {
	return Func{
		Name: "clickable " + name,
		Fn: func(ctx context.Context, b core.Browser) (bool, error) {
			return b.IsClickable(ctx, el)
		},
	}
}

// URLContains waits for the current URL to contain any of substrings.
func URLContains(substrings ...string) Condition {
	return containsAny("url", substrings, func(ctx context.Context, b core.Browser) (string, error) {
		return b.CurrentURL(ctx)
	})
}

// TextContains waits for the page text to contain any of substrings, such as the
// same success notice in several locales.
func TextContains(substrings ...string) Condition {
	return containsAny("page text", substrings, func(ctx context.Context, b core.Browser) (string, error) {
		return b.PageText(ctx)
	})
}

// TitleContains waits for the document title to contain any of substrings.
func TitleContains(substrings ...string) Condition {
	return containsAny("title", substrings, func(ctx context.Context, b core.Browser) (string, error) {
		return b.Title(ctx)
	})
}

// ElementTextContains waits for the element's text to contain any of substrings.
func ElementTextContains(el core.Element, substrings ...string) Condition {
	return containsAny("element text", substrings, func(ctx context.Context, _ core.Browser) (string, error) {
		return el.Text(ctx)
	})
}

func containsAny(subject string, substrings []string, read func(context.Context, core.Browser) (string, error)) Condition {
	return Func{
		Name: fmt.Sprintf("%s containing any of %q", subject, substrings),
		Fn: func(ctx context.Context, b core.Browser) (bool, error) {
			v, err := read(ctx, b)
			if err != nil {
				return false, err
			}
			for _, s := range substrings {
				if strings.Contains(v, s) {
					return true, nil
				}
			}
			return false, nil
		},
	}
}
