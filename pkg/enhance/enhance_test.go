package enhance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/domkit/pkg/dom"
)

const page = `<!DOCTYPE html><html><body>
<div id="box" class="card" data-state="idle">old</div>
<ul id="list">
  <li class="item">one</li>
  <li class="item" style="display: none">two</li>
  <li class="item" disabled>three</li>
</ul>
</body></html>`

func parse(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(page)
	require.NoError(t, err)
	return doc
}

func TestEnhanceIsIdempotent(t *testing.T) {
	doc := parse(t)
	raw := doc.GetElementByID("box")

	assert.False(t, IsEnhanced(raw))
	el := Enhance(raw)
	assert.True(t, IsEnhanced(raw))
	assert.Same(t, el, Enhance(raw))
	assert.Same(t, raw, el.Raw())
	assert.Nil(t, Enhance(nil))
	assert.NotContains(t, raw.Attributes(), "enhanced", "the marker is not an attribute")
}

func TestUpdateDispatchPrecedence(t *testing.T) {
	doc := parse(t)
	el := Enhance(doc.GetElementByID("box"))

	report := el.UpdateReport(Updates{
		"style":       map[string]any{"color": "red"},
		"classList":   map[string]any{"add": "x"},
		"textContent": "hi",
		"customAttr":  "v",
	})

	require.True(t, report.OK(), "%v", report.Errors)
	raw := el.Raw()
	assert.Equal(t, "red", raw.Style().GetPropertyValue("color"))
	assert.True(t, raw.ClassList().Contains("x"))
	assert.Equal(t, "hi", raw.TextContent())
	assert.Equal(t, "v", raw.GetAttribute("customAttr"))
	assert.ElementsMatch(t, []string{"style", "classList", "textContent", "customAttr"}, report.Applied)
}

func TestUpdateContinuesPastFailures(t *testing.T) {
	doc := parse(t)
	el := Enhance(doc.GetElementByID("box"))

	var report UpdateReport
	assert.NotPanics(t, func() {
		report = el.UpdateReport(Updates{
			"style":     map[string]any{"not a property!": "1", "margin": "2px"},
			"tagName":   "SPAN",
			"dataset":   map[string]any{"state": "busy", "count": 3},
			"title":     "tip",
			"classList": map[string]any{"add": "bad token"},
		})
	})

	raw := el.Raw()
	assert.Equal(t, "2px", raw.Style().GetPropertyValue("margin"))
	assert.Equal(t, "tip", raw.GetAttribute("title"))
	assert.Equal(t, "busy", raw.GetAttribute("data-state"))
	assert.Equal(t, "3", raw.GetAttribute("data-count"))
	assert.Equal(t, []string{"classList", "style"}, report.FailedKeys())
	assert.Contains(t, report.Errors["style"].Error(), "E003")

	assert.Same(t, el, el.Update(Updates{"classList": map[string]any{"add": "bad token"}}), "Update chains even on failure")
}

func TestUpdateReadOnlyPropertyFallsBackToAttribute(t *testing.T) {
	doc := parse(t)
	el := Enhance(doc.GetElementByID("box"))

	report := el.UpdateReport(Updates{"tagName": "SPAN"})
	require.True(t, report.OK(), "%v", report.Errors)
	raw := el.Raw()
	assert.Equal(t, "DIV", raw.TagName())
	assert.Equal(t, "SPAN", raw.GetAttribute("tagName"))

	p, ok := dom.LookupProperty("tagName")
	require.True(t, ok)
	assert.ErrorIs(t, p.Assign(raw, "P"), dom.ErrReadOnly)
}

func TestUpdateClassListOperations(t *testing.T) {
	doc := parse(t)
	el := Enhance(doc.GetElementByID("box"))

	el.Update(Updates{"classList": map[string]any{
		"add":     []any{"a", "b"},
		"remove":  "card",
		"toggle":  "c",
		"replace": []string{"a", "z"},
	}})
	assert.ElementsMatch(t, []string{"z", "b", "c"}, el.Raw().ClassList().Values())
}

func TestUpdateAttributesAndMethods(t *testing.T) {
	doc := parse(t)
	el := Enhance(doc.GetElementByID("box"))

	el.Update(Updates{
		"setAttribute":    map[string]any{"role": "region", "aria-live": "polite"},
		"removeAttribute": []string{"data-state"},
		"toggleAttribute": []any{"hidden", true},
		"hidden":          true,
	})
	raw := el.Raw()
	assert.Equal(t, "region", raw.GetAttribute("role"))
	assert.Equal(t, "polite", raw.GetAttribute("aria-live"))
	assert.False(t, raw.HasAttribute("data-state"))
	assert.True(t, raw.HasAttribute("hidden"))

	el.Update(Updates{"setAttribute": []any{"role", "note"}})
	assert.Equal(t, "note", raw.GetAttribute("role"))
}

func TestUpdateEventListeners(t *testing.T) {
	doc := parse(t)
	el := Enhance(doc.GetElementByID("box"))

	clicks := 0
	l := dom.Listen(func(*dom.Event) { clicks++ })
	el.Update(Updates{"addEventListener": map[string]any{"click": l}})
	el.Raw().Click()
	assert.Equal(t, 1, clicks)

	el.Update(Updates{"removeEventListener": map[string]*dom.EventListener{"click": l}})
	el.Raw().Click()
	assert.Equal(t, 1, clicks)
}

func TestUpdateMiddleware(t *testing.T) {
	doc := parse(t)
	el := Enhance(doc.GetElementByID("box"))

	var seen []string
	el.Use(func(next UpdateFunc) UpdateFunc {
		return func(e *Element, u Updates) UpdateReport {
			rest := Updates{}
			for k, v := range u {
				if k == "values" {
					seen = append(seen, "values")
					continue
				}
				rest[k] = v
			}
			return next(e, rest).Merge(UpdateReport{Applied: []string{"values"}})
		}
	})

	report := el.UpdateReport(Updates{"values": map[string]any{"a": 1}, "title": "t"})
	assert.Equal(t, []string{"values"}, seen)
	assert.ElementsMatch(t, []string{"title", "values"}, report.Applied)
	assert.False(t, el.Raw().HasAttribute("values"))
}

func TestCollectionHelpers(t *testing.T) {
	doc := parse(t)
	c := EnhanceList(doc.GetElementsByClassName("item"))

	require.Equal(t, 3, c.Len())
	assert.Same(t, c, EnhanceList(c))
	assert.Equal(t, "one", c.First().TextContent())
	assert.Equal(t, "three", c.Last().TextContent())
	assert.Equal(t, "two", c.At(-2).TextContent())
	assert.Nil(t, c.At(5))
	assert.Nil(t, c.At(-5))
	assert.Same(t, c.First(), c.At(0))

	texts := MapOf(c, func(el *Element, _ int) string { return el.TextContent() })
	assert.Equal(t, []string{"one", "two", "three"}, texts)
	assert.Equal(t, 2, c.Visible().Len())
	assert.Equal(t, 1, c.Hidden().Len())
	assert.Equal(t, 2, c.Enabled().Len())
	assert.Equal(t, "three", c.Disabled().First().TextContent())
	assert.True(t, c.Some(func(el *Element, _ int) bool { return el.TextContent() == "two" }))
	assert.False(t, c.Every(func(el *Element, _ int) bool { return el.TextContent() == "two" }))
	assert.Equal(t, 3, c.Reduce(func(acc any, _ *Element, _ int) any { return acc.(int) + 1 }, 0))

	n := 0
	for i, el := range c.All() {
		assert.Equal(t, c.At(i), el)
		n++
	}
	assert.Equal(t, 3, n)
}

func TestCollectionIsLive(t *testing.T) {
	doc := parse(t)
	c := EnhanceList(doc.GetElementsByClassName("item"))

	li := doc.CreateElement("li")
	require.NoError(t, li.SetClassName("item"))
	require.NoError(t, doc.GetElementByID("list").AppendChild(li))
	assert.Equal(t, 4, c.Len())
}

func TestCollectionBulkOperations(t *testing.T) {
	doc := parse(t)
	c := EnhanceList(doc.GetElementsByClassName("item"))

	c.AddClass("on").SetStyle(map[string]any{"color": "blue"}).SetAttribute("role", "option")
	c.Update(Updates{"title": "t"})
	for _, el := range c.Slice() {
		raw := el.Raw()
		assert.True(t, raw.ClassList().Contains("on"))
		assert.Equal(t, "blue", raw.Style().GetPropertyValue("color"))
		assert.Equal(t, "option", raw.GetAttribute("role"))
		assert.Equal(t, "t", raw.GetAttribute("title"))
	}

	c.ToggleClass("on").RemoveClass("item")
	assert.Zero(t, c.Len(), "members leave the live collection")

	empty := Empty()
	assert.True(t, empty.IsEmpty())
	assert.Nil(t, empty.First())
	assert.True(t, empty.Every(func(*Element, int) bool { return false }))
}

func TestCollectionEvents(t *testing.T) {
	doc := parse(t)
	c := EnhanceList(doc.GetElementsByClassName("item"))

	hits := 0
	l := dom.Listen(func(*dom.Event) { hits++ })
	c.On("ping", l)
	for _, el := range c.Slice() {
		el.Raw().DispatchEvent(dom.NewEvent("ping", false))
	}
	assert.Equal(t, 3, hits)

	c.Off("ping", l)
	c.First().Raw().DispatchEvent(dom.NewEvent("ping", false))
	assert.Equal(t, 3, hits)
}

func TestEqualAndClone(t *testing.T) {
	doc := parse(t)
	box := doc.GetElementByID("box")

	a := map[string]any{"n": 1, "list": []any{"x", map[string]any{"y": true}}, "el": box}
	b := Clone(a).(map[string]any)
	assert.True(t, Equal(a, b))

	b["list"].([]any)[1].(map[string]any)["y"] = false
	assert.False(t, Equal(a, b))
	assert.Equal(t, true, a["list"].([]any)[1].(map[string]any)["y"], "clone is deep")
	assert.Same(t, box, b["el"])

	assert.True(t, Equal(box, box))
	assert.False(t, Equal(box, doc.GetElementByID("list")))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(1, "1"))
}
