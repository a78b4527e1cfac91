// Package notifications sends gitwatch change notifications through Shoutrrr.
//
// Each branch change is rendered with a text/template and queued for delivery to
// every configured service URL. Log entries at or above the notification level
// can be forwarded as well through a logrus hook.
//
// Key components:
//   - Notifier creation: Configures a notifier from flags (notifier.go).
//   - Shoutrrr integration: Templating, queuing and sending (shoutrrr.go).
//   - JSON marshaling: The json.v1 template data (json.go).
//
// Usage example:
//
//	notifier, err := notifications.NewNotifier(cmd)
//	if err != nil {
//	    return err
//	}
//	defer notifier.Close()
//
//	notifier.Notify(repo, change, state)
package notifications
