package plugin

// Implements reports whether p provides hook h. A HookProvider answer takes
// precedence over the Go interface the plugin satisfies.
func Implements(p Plugin, h Hook) bool {
	if hp, ok := p.(HookProvider); ok && !hp.HasHook(h) {
		return false
	}
	switch h {
	case HookConfig:
		_, ok := p.(ConfigHook)
		return ok
	case HookConfigResolved:
		_, ok := p.(ConfigResolvedHook)
		return ok
	}
	if hp, ok := p.(HookProvider); ok {
		return hp.HasHook(h)
	}
	return false
}

// HookOrderOf returns the order p declares for h.
func HookOrderOf(p Plugin, h Hook) Order {
	if o, ok := p.(HookOrderer); ok {
		return o.HookOrder(h)
	}
	return OrderDefault
}

// SortedByHook returns the plugins that implement h. Plugins whose hook is
// ordered "pre" come first and "post" last; the relative order within each
// group is preserved.
func SortedByHook(plugins []Plugin, h Hook) []Plugin {
	var pre, normal, post []Plugin
	for _, p := range plugins {
		if !Implements(p, h) {
			continue
		}
		switch HookOrderOf(p, h) {
		case OrderPre:
			pre = append(pre, p)
		case OrderPost:
			post = append(post, p)
		default:
			normal = append(normal, p)
		}
	}

	out := make([]Plugin, 0, len(pre)+len(normal)+len(post))
	out = append(out, pre...)
	out = append(out, normal...)
	return append(out, post...)
}

// AnonymousName stands in for the name of plugins declared without one.
// Names need not be unique.
const AnonymousName = "anonymous"

// Names returns the plugin names in order.
func Names(plugins []Plugin) []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name()
		if names[i] == "" {
			names[i] = AnonymousName
		}
	}
	return names
}
