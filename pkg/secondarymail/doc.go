// Package secondarymail manages secondary email addresses attached to a
// central account: registering them, proving ownership through mailed
// confirmation tokens, promoting a confirmed address to primary and
// deleting addresses that are no longer wanted.
//
// MailService is the entry point. It persists records through an
// EmailRepository (Postgres or file backed), resolves local users to
// their central account through identity.Resolver, and mails
// confirmation and change notices through notification.Manager.
package secondarymail
