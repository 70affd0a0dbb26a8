// Package dom provides a live, goroutine-safe document model with the subset
// of browser DOM semantics domkit needs.
//
// The model mirrors the browser APIs a query cache depends on:
//
//   - Lookups: GetElementByID, GetElementsByClassName/TagName/Name (live
//     HTMLCollection), QuerySelector and QuerySelectorAll (static NodeList)
//   - Containment: Document.Contains and Element.IsConnected
//   - Mutation observation: MutationObserver with childList, attributes and
//     subtree options
//   - Element state: attributes, ClassList, Style, Dataset, text content,
//     event listeners and expando slots
//
// # Parsing and selectors
//
// Documents are parsed with golang.org/x/net/html. Selector matching is done
// by github.com/andybalholm/cascadia against an html.Node mirror of the tree
// that is rebuilt only when the document version changes.
//
// # Concurrency
//
// Every Document owns a single RWMutex. Mutating calls take the write lock,
// queue MutationRecords for interested observers, release the lock and then
// deliver the queued records. Observer callbacks therefore never run with the
// document locked and may call back into the document freely.
//
// # Usage
//
//	doc, err := dom.ParseString(`<body><div id="app" class="card"></div></body>`)
//	if err != nil {
//	    return err
//	}
//	app := doc.GetElementByID("app")
//	app.ClassList().Add("active")
package dom
