/*
Package domain contains the core models of the concierge scenario engine.

It defines the entities a support-chat scenario is made of and the runtime
snapshot of a visitor conversation. This package is kept pure and free of I/O,
following Hexagonal Architecture principles.

# Key Entities

  - Scenario: A named, versioned graph of Nodes plus optional Connections.
  - Node: A step of the conversation (start, message, question, condition, action, end).
  - Branch: A selectable option on a node (button, link, jump, free text prompt, restart).
  - Session: The runtime position of one visitor (current node, remembered answers, status).
  - Event: What the visitor did (Start, SelectBranch, FreeText).
  - SideEffect: What the host must do after a transition (open a link, hand off, close...).
*/
package domain
