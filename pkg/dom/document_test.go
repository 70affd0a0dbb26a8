package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html><html><head><title>t</title></head><body>
<div id="app" class="card main">
  <button id="save" class="btn primary" name="action">Save</button>
  <button id="cancel" class="btn" name="action" disabled>Cancel</button>
  <input id="email" name="email" type="email">
  <p class="note" style="display: none">hidden note</p>
</div>
</body></html>`

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	doc, err := ParseString(s)
	require.NoError(t, err)
	return doc
}

func TestGetElementByID(t *testing.T) {
	doc := mustParse(t, page)

	save := doc.GetElementByID("save")
	require.NotNil(t, save)
	assert.Equal(t, "BUTTON", save.TagName())
	assert.Equal(t, "Save", save.TextContent())
	assert.Same(t, save, doc.GetElementByID("save"), "lookups must return the same element")
	assert.Nil(t, doc.GetElementByID("missing"))
	assert.Nil(t, doc.GetElementByID(""))
}

func TestLiveCollections(t *testing.T) {
	doc := mustParse(t, page)

	btns := doc.GetElementsByClassName("btn")
	assert.Equal(t, 2, btns.Len())
	assert.Equal(t, 1, doc.GetElementsByClassName("btn primary").Len())
	assert.Equal(t, 2, doc.GetElementsByName("action").Len())
	assert.Equal(t, 2, doc.GetElementsByTagName("BUTTON").Len())

	extra := doc.CreateElement("button")
	require.NoError(t, extra.SetClassName("btn"))
	require.NoError(t, doc.Body().AppendChild(extra))
	assert.Equal(t, 3, btns.Len(), "HTMLCollection must reflect later insertions")
	assert.Same(t, extra, btns.Item(2))

	doc.GetElementByID("save").Remove()
	assert.Equal(t, 2, btns.Len())
	assert.Nil(t, btns.Item(5))
}

func TestQuerySelector(t *testing.T) {
	doc := mustParse(t, page)

	el, err := doc.QuerySelector("#app > .btn:not([disabled])")
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, "save", el.ID())

	list, err := doc.QuerySelectorAll("button")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Len())

	// static list keeps its members after removal
	list.Item(0).Remove()
	assert.Equal(t, 2, list.Len())

	_, err = doc.QuerySelectorAll("div[")
	var selErr *SelectorError
	require.ErrorAs(t, err, &selErr)
	assert.Equal(t, "div[", selErr.Selector)
}

func TestScopedQueryExcludesScope(t *testing.T) {
	doc := mustParse(t, page)
	app := doc.GetElementByID("app")

	list, err := app.QuerySelectorAll("div, button")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Len())

	ok, err := app.Matches("div.card")
	require.NoError(t, err)
	assert.True(t, ok)

	closest, err := doc.GetElementByID("save").Closest(".main")
	require.NoError(t, err)
	assert.Same(t, app, closest)
}

func TestContains(t *testing.T) {
	doc := mustParse(t, page)
	save := doc.GetElementByID("save")

	assert.True(t, doc.Contains(save))
	save.Remove()
	assert.False(t, doc.Contains(save))
	assert.False(t, save.IsConnected())
	assert.False(t, doc.Contains(nil))

	other := NewDocument()
	assert.False(t, other.Contains(doc.GetElementByID("app")))
}

func TestTreeMutationErrors(t *testing.T) {
	doc := mustParse(t, page)
	app := doc.GetElementByID("app")
	save := doc.GetElementByID("save")

	assert.ErrorIs(t, save.AppendChild(app), ErrHierarchy)
	assert.ErrorIs(t, app.AppendChild(NewDocument().CreateElement("div")), ErrWrongDocument)
	assert.ErrorIs(t, doc.Body().RemoveChild(save), ErrNotFound)
}

func TestInnerHTMLAndText(t *testing.T) {
	doc := mustParse(t, page)
	app := doc.GetElementByID("app")

	require.NoError(t, app.SetInnerHTML(`<span id="a">x</span><span id="b">y</span>`))
	assert.Equal(t, "xy", app.TextContent())
	assert.Len(t, app.Children(), 2)
	assert.Nil(t, doc.GetElementByID("save"))

	app.SetTextContent("plain")
	assert.Equal(t, "plain", app.TextContent())
	assert.Empty(t, app.Children())
	assert.Equal(t, `<div id="app" class="card main">plain</div>`, app.OuterHTML())
}

func TestClassListStyleDataset(t *testing.T) {
	doc := mustParse(t, page)
	el := doc.GetElementByID("save")

	require.NoError(t, el.ClassList().Add("x", "btn"))
	assert.Equal(t, []string{"btn", "primary", "x"}, el.ClassList().Values())
	on, err := el.ClassList().Toggle("primary")
	require.NoError(t, err)
	assert.False(t, on)
	assert.ErrorIs(t, el.ClassList().Add(""), ErrSyntax)
	assert.ErrorIs(t, el.ClassList().Add("a b"), ErrInvalidCharacter)

	require.NoError(t, el.Style().SetProperty("backgroundColor", "red"))
	assert.Equal(t, "red", el.Style().GetPropertyValue("background-color"))
	assert.ErrorIs(t, el.Style().SetProperty("bad;prop", "x"), ErrSyntax)
	assert.ErrorIs(t, el.Style().SetProperty("color", "red; x: y"), ErrSyntax)

	require.NoError(t, el.Dataset().Set("userId", "42"))
	assert.Equal(t, "42", el.GetAttribute("data-user-id"))
	assert.Equal(t, map[string]string{"userId": "42"}, el.Dataset().All())
	assert.Error(t, el.Dataset().Set("bad-key", "1"))
}

func TestVisibility(t *testing.T) {
	doc := mustParse(t, page)

	note, err := doc.QuerySelector(".note")
	require.NoError(t, err)
	assert.False(t, note.IsVisible())
	assert.True(t, doc.GetElementByID("save").IsVisible())

	require.NoError(t, doc.GetElementByID("app").SetAttribute("hidden", ""))
	assert.False(t, doc.GetElementByID("save").IsVisible())
}

func TestEvents(t *testing.T) {
	doc := mustParse(t, page)
	app := doc.GetElementByID("app")
	save := doc.GetElementByID("save")

	var order []string
	inner := Listen(func(e *Event) { order = append(order, "save") })
	outer := Listen(func(e *Event) {
		order = append(order, "app")
		assert.Same(t, save, e.Target)
	})
	save.AddEventListener("click", inner)
	save.AddEventListener("click", inner)
	app.AddEventListener("click", outer)
	assert.Equal(t, 1, save.ListenerCount("click"))

	save.Click()
	assert.Equal(t, []string{"save", "app"}, order)

	save.RemoveEventListener("click", inner)
	save.Click()
	assert.Equal(t, []string{"save", "app", "app"}, order)

	// disabled elements swallow clicks
	doc.GetElementByID("cancel").Click()
	assert.Len(t, order, 3)
}

func TestReflectedProperties(t *testing.T) {
	doc := mustParse(t, page)
	email := doc.GetElementByID("email")

	p, ok := LookupProperty("value")
	require.True(t, ok)
	require.NoError(t, p.Assign(email, "a@b.c"))
	assert.Equal(t, "a@b.c", email.Get("value"))

	p, _ = LookupProperty("disabled")
	require.NoError(t, p.Assign(email, true))
	assert.True(t, email.HasAttribute("disabled"))

	p, _ = LookupProperty("tagName")
	assert.ErrorIs(t, p.Assign(email, "DIV"), ErrReadOnly)

	m, ok := LookupMethod("focus")
	require.True(t, ok)
	_, err := m(email)
	require.NoError(t, err)
	assert.Same(t, email, doc.ActiveElement())
}

func TestOnReady(t *testing.T) {
	doc := NewBodylessDocument()
	assert.Nil(t, doc.Body())

	ran := 0
	doc.OnReady(func() { ran++ })
	assert.Equal(t, 0, ran)

	require.NoError(t, doc.DocumentElement().AppendChild(doc.CreateElement("body")))
	assert.Equal(t, 1, ran)

	doc.OnReady(func() { ran++ })
	assert.Equal(t, 2, ran, "callbacks registered after the body exists run immediately")
}
