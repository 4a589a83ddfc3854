package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/autofill"
)

const TargetTypePage = "page"

// NavigatePage uses raw CDP Page.navigate + polls document.readyState for completion.
func NavigatePage(ctx context.Context, url string) error {
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, _, errText, _, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("navigate %s: %s", url, errText)
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			var state string
			err = chromedp.Run(ctx,
				chromedp.Evaluate("document.readyState", &state),
			)
			if err == nil && (state == "interactive" || state == "complete") {
				return nil
			}
		}
	}
}

// callResult is the part of a Runtime.callFunctionOn response callOnNode
// reads.
type callResult struct {
	Result struct {
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text      string `json:"text"`
		Exception *struct {
			Description string `json:"description"`
		} `json:"exception"`
	} `json:"exceptionDetails"`
}

// callOnNode resolves a backend node id to a fresh remote object and calls
// fn on it with args, decoding the by-value result into out. A node that no
// longer resolves yields autofill.ErrDetached.
func callOnNode(ctx context.Context, backendNodeID int64, fn string, args []any, out any) error {
	return chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		target := chromedp.FromContext(ctx).Target

		var resolved json.RawMessage
		if err := target.Execute(ctx, "DOM.resolveNode", map[string]any{
			"backendNodeId": backendNodeID,
		}, &resolved); err != nil {
			return fmt.Errorf("resolve node %d: %w: %w", backendNodeID, autofill.ErrDetached, err)
		}
		var obj struct {
			Object struct {
				ObjectID string `json:"objectId"`
			} `json:"object"`
		}
		if err := json.Unmarshal(resolved, &obj); err != nil {
			return err
		}
		if obj.Object.ObjectID == "" {
			return fmt.Errorf("resolve node %d: %w", backendNodeID, autofill.ErrDetached)
		}
		defer func() {
			_ = target.Execute(ctx, "Runtime.releaseObject", map[string]any{"objectId": obj.Object.ObjectID}, nil)
		}()

		callArgs := make([]map[string]any, len(args))
		for i, a := range args {
			callArgs[i] = map[string]any{"value": a}
		}
		var raw json.RawMessage
		if err := target.Execute(ctx, "Runtime.callFunctionOn", map[string]any{
			"functionDeclaration": fn,
			"objectId":            obj.Object.ObjectID,
			"arguments":           callArgs,
			"returnByValue":       true,
		}, &raw); err != nil {
			return fmt.Errorf("call on node %d: %w", backendNodeID, err)
		}

		var res callResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return fmt.Errorf("decode call result: %w", err)
		}
		if e := res.ExceptionDetails; e != nil {
			msg := e.Text
			if e.Exception != nil && e.Exception.Description != "" {
				msg = e.Exception.Description
			}
			return fmt.Errorf("script error on node %d: %s", backendNodeID, msg)
		}
		if out == nil || len(res.Result.Value) == 0 {
			return nil
		}
		return json.Unmarshal(res.Result.Value, out)
	}))
}

// scriptCall renders fn(args...) with args encoded as JSON literals.
func scriptCall(fn string, args ...any) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		parts[i] = string(b)
	}
	return "(" + fn + ")(" + strings.Join(parts, ", ") + ")", nil
}

// PageLocation returns the URL and title of the tab behind ctx.
func PageLocation(ctx context.Context) (url, title string, err error) {
	err = chromedp.Run(ctx, chromedp.Location(&url), chromedp.Title(&title))
	return url, title, err
}
