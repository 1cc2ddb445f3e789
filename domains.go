package driftcdp

import "github.com/chromedp/cdproto"

// domainEventIndex enumerates, for each domain this core actually
// deals in, the event classes a Domain handler target expands to.
// cdproto's generated event constants are the source of truth; this
// is a curated subset covering the events the Connection, Expectation
// and interception layers observe or that a caller is expected to
// watch, not the full protocol surface (full enumeration requires the
// generated schema itself).
var domainEventIndex = map[Domain][]cdproto.MethodType{
	"Network": {
		cdproto.EventNetworkRequestWillBeSent,
		cdproto.EventNetworkRequestWillBeSentExtraInfo,
		cdproto.EventNetworkResponseReceived,
		cdproto.EventNetworkResponseReceivedExtraInfo,
		cdproto.EventNetworkLoadingFinished,
		cdproto.EventNetworkLoadingFailed,
		cdproto.EventNetworkRequestServedFromCache,
	},
	"Fetch": {
		cdproto.EventFetchRequestPaused,
		cdproto.EventFetchAuthRequired,
	},
	"Page": {
		cdproto.EventPageFrameNavigated,
		cdproto.EventPageFrameStartedLoading,
		cdproto.EventPageFrameStoppedLoading,
		cdproto.EventPageLoadEventFired,
		cdproto.EventPageDomContentEventFired,
		cdproto.EventPageJavascriptDialogOpening,
		cdproto.EventPageDownloadWillBegin,
		cdproto.EventPageDownloadProgress,
	},
	"DOM": {
		cdproto.EventDOMDocumentUpdated,
		cdproto.EventDOMSetChildNodes,
		cdproto.EventDOMAttributeModified,
		cdproto.EventDOMChildNodeInserted,
		cdproto.EventDOMChildNodeRemoved,
	},
	"Target": {
		cdproto.EventTargetTargetCreated,
		cdproto.EventTargetTargetInfoChanged,
		cdproto.EventTargetTargetDestroyed,
		cdproto.EventTargetAttachedToTarget,
		cdproto.EventTargetDetachedFromTarget,
		cdproto.EventTargetReceivedMessageFromTarget,
	},
	"Runtime": {
		cdproto.EventRuntimeExecutionContextCreated,
		cdproto.EventRuntimeExecutionContextDestroyed,
		cdproto.EventRuntimeExecutionContextsCleared,
		cdproto.EventRuntimeConsoleAPICalled,
		cdproto.EventRuntimeExceptionThrown,
	},
	"Log": {
		cdproto.EventLogEntryAdded,
	},
	"Inspector": {
		cdproto.EventInspectorDetached,
		cdproto.EventInspectorTargetCrashed,
	},
}
