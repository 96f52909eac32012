// Package session owns the state of one running player: the folder being browsed, the active engine
// (audio playlist or text reader), the credential mode and the persisted progress.
//
// Every UI action is a method on [Session]. Actions are serialized; remote calls are the only places
// they wait. Results and failures are reported on the channel returned by [Session.Events], so a
// front end never has to interpret errors beyond displaying them.
//
// On start the last session snapshot is replayed: navigation is rebuilt, the story folder is listed
// fresh, and the active engine is rebuilt and positioned. Replaying the same snapshot twice yields
// the same state.
package session
