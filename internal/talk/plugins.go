package talk

import (
	"context"
	"fmt"
)

const pluginsLogPrefix = "talk:plugins"

// Plugin failures never abort the calling handler: they come back as false so scripts
// can branch on them.

func (c *Call) pluginContext() (context.Context, context.CancelFunc) {
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.System.pluginTimeout)
}

func (c *Call) pluginFailure(action string, err error) {
	te := &Error{Kind: PluginBoundaryFailure, Message: fmt.Sprintf("%s: %v", action, err)}
	c.System.logger.Warn(fmt.Sprintf("%s - %v", pluginsLogPrefix, te))
}

// builtinLoadPlugin: loadPlugin name, url
func builtinLoadPlugin(c *Call) (Value, error) {
	if c.System.plugins == nil {
		c.pluginFailure("loadPlugin "+c.String(0), fmt.Errorf("no plugin host configured"))
		return false, nil
	}
	ctx, cancel := c.pluginContext()
	defer cancel()
	ok, err := c.System.plugins.Load(ctx, c.String(0), c.String(1))
	if err != nil {
		c.pluginFailure("loadPlugin "+c.String(0), err)
		return false, nil
	}
	return ok, nil
}

// builtinPluginGet: pluginGet name, prerequisite[, key]
func builtinPluginGet(c *Call) (Value, error) {
	if c.System.plugins == nil {
		c.pluginFailure("pluginGet "+c.String(0), fmt.Errorf("no plugin host configured"))
		return false, nil
	}
	ctx, cancel := c.pluginContext()
	defer cancel()
	result, err := c.System.plugins.Get(ctx, c.String(0), c.String(1), c.String(2))
	if err != nil {
		c.pluginFailure("pluginGet "+c.String(0), err)
		return false, nil
	}
	return result, nil
}

// builtinPluginRequest: pluginRequest name, prerequisite, key, replyMessage
//
// The request runs on its own goroutine. Its result, or false, is posted back to the
// requesting part as replyMessage and dispatched by the next RunPending or Serve pass.
func builtinPluginRequest(c *Call) (Value, error) {
	reply := c.String(3)
	if reply == "" {
		return nil, newError(RuntimeFailure, "pluginRequest needs a reply message name")
	}
	if c.System.plugins == nil {
		c.pluginFailure("pluginRequest "+c.String(0), fmt.Errorf("no plugin host configured"))
		return false, nil
	}
	name, prereq, key := c.String(0), c.String(1), c.String(2)
	target := c.Self().id
	sys := c.System
	timeout := sys.pluginTimeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		var result Value = false
		if v, err := sys.plugins.Get(ctx, name, prereq, key); err != nil {
			sys.logger.Warn(fmt.Sprintf("%s - pluginRequest %s: %v", pluginsLogPrefix, name, err))
		} else {
			result = v
		}
		sys.Post(Message{Kind: KindCommand, Name: reply, Args: []Value{result}, Target: target, ShouldIgnore: true})
	}()
	return true, nil
}
