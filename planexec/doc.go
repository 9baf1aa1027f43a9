// Package planexec implements the plan-and-execute orchestration strategy:
// a planner decomposes the user requirement into an ordered plan, each
// step's tasks fan out to parallel tool-using workers, and a reporter
// synthesizes the collected results into the final answer.
//
// The pipeline is a three node graph over graph.Engine:
//
//  1. planner – generates the plan (one forced structured-output call),
//     dispatches the current step's pending tasks as parallel worker
//     branches, folds settled results back into the plan, advances the
//     step cursor, and decides when to hand over to the reporter
//  2. worker – executes exactly one task through the subagent executor
//     and classifies the outcome (completed, no tools used, disallowed
//     flow-control tool, execution error)
//  3. reporter – one synthesis call over the accumulated message log,
//     terminal
//
// Control flow guarantees:
//   - Steps execute strictly in declaration order; a step's tasks run
//     concurrently but the planner re-evaluates only after all of them
//     settled
//   - Worker branches operate on private state clones and report back
//     through task-scoped result keys, so parallel merges never collide
//   - Planning passes are bounded by MaxPlanIterations; reaching the cap
//     forces the run to the reporter
//   - A step whose tasks all failed aborts the run to the reporter
//     without advancing the cursor
//
// Model routing and tool resolution stay in the model and tool packages;
// prompts come from the prompt package.
package planexec
